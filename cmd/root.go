package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbexec/internal/migration"
	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/rollback"
	"github.com/nethalo/dbexec/internal/watchdog"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dbexec",
	Short: "Supervised execution of reviewed MySQL DDL/DML statements",
	Long: `dbexec runs one reviewed MySQL DDL or DML statement and reports exactly
what happened: status, affected rows, time taken and the server's own error
text when it fails.

While the statement runs, a side connection watches its processlist row so
metadata lock waits are visible before the statement returns. DML runs
between two binlog positions read on the same session, and the row events
between them are turned into rollback statements. ALTER TABLE can be routed
through gh-ost with its output streamed live.`,
}

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dbexec/config.yaml)")
	rootCmd.PersistentFlags().StringP("host", "H", "", "MySQL host")
	rootCmd.PersistentFlags().IntP("port", "P", 3306, "MySQL port")
	rootCmd.PersistentFlags().StringP("user", "u", "", "MySQL user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "MySQL password (will prompt if flag present without value)")
	rootCmd.PersistentFlags().Lookup("password").NoOptDefVal = "" // Allow -p without value to trigger prompt
	rootCmd.PersistentFlags().StringP("database", "d", "", "Target database")
	rootCmd.PersistentFlags().StringP("socket", "S", "", "Unix socket path")
	rootCmd.PersistentFlags().String("charset", "utf8mb4", "Connection character set")
	rootCmd.PersistentFlags().String("tls", "", "TLS mode: true, skip-verify, preferred, custom")
	rootCmd.PersistentFlags().String("tls-ca", "", "CA certificate file for --tls=custom")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, plain, json, markdown")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show additional debug info")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("socket", rootCmd.PersistentFlags().Lookup("socket"))
	viper.BindPFlag("charset", rootCmd.PersistentFlags().Lookup("charset"))
	viper.BindPFlag("tls", rootCmd.PersistentFlags().Lookup("tls"))
	viper.BindPFlag("tls_ca", rootCmd.PersistentFlags().Lookup("tls-ca"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("online_migration.enabled", false)
	viper.SetDefault("online_migration.tool", migration.DefaultTool)
	viper.SetDefault("online_migration.socket_dir", migration.DefaultSocketDir)
	viper.SetDefault("watchdog.interval", watchdog.DefaultInterval)
	viper.SetDefault("watchdog.grace", watchdog.DefaultGrace)
	viper.SetDefault("rollback.server_id", 0)
	viper.SetDefault("rollback.timeout", rollback.DefaultTimeout)
	viper.SetDefault("notify.kafka.write_timeout", 10*time.Second)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.dbexec")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DBEXEC")
	viper.AutomaticEnv()

	// Silently ignore missing config file; it is optional
	if err := viper.ReadInConfig(); err == nil {
		// Map nested config structure to flat keys that flags expect
		// Only set these if the flags haven't been explicitly set by the user
		mapConfig("host", "connections.default.host")
		mapConfig("port", "connections.default.port")
		mapConfig("user", "connections.default.user")
		mapConfig("database", "connections.default.database")
		mapConfig("charset", "connections.default.charset")
		mapConfig("format", "defaults.format")
	}
}

func mapConfig(flag, key string) {
	if rootCmd.PersistentFlags().Changed(flag) || !viper.IsSet(key) {
		return
	}
	viper.Set(flag, viper.Get(key))
}

// newLogger builds the diagnostics logger. Logs go to stderr so stdout
// carries only the rendered outcome.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = logrus.WarnLevel
	}
	if viper.GetBool("verbose") {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if viper.GetString("log.format") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// connectionConfig assembles the target from flags, environment and config
// file, prompting for the password when none was given.
func connectionConfig() mysql.ConnectionConfig {
	connCfg := mysql.ConnectionConfig{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		User:     viper.GetString("user"),
		Password: viper.GetString("password"),
		Database: viper.GetString("database"),
		Socket:   viper.GetString("socket"),
		Charset:  viper.GetString("charset"),
		TLSMode:  viper.GetString("tls"),
		TLSCA:    viper.GetString("tls_ca"),
	}

	if connCfg.Host == "" && connCfg.Socket == "" {
		connCfg.Host = "127.0.0.1"
	}
	if connCfg.User == "" {
		connCfg.User = "dbexec"
	}

	// Prompt for password if not provided
	if connCfg.Password == "" {
		connCfg.Password = mysql.PromptPassword()
	}

	return connCfg
}
