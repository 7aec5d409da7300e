package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbexec/internal/migration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dbexec configuration",
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create config file interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		configDir := filepath.Join(home, ".dbexec")
		configPath := filepath.Join(configDir, "config.yaml")
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
			if !strings.EqualFold(ask(out, reader, "Overwrite? [y/N]", "n"), "y") {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := os.MkdirAll(configDir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		fmt.Fprintln(out, "dbexec configuration setup")
		fmt.Fprintln(out, "──────────────────────────")
		fmt.Fprintln(out)

		host := ask(out, reader, "MySQL host [127.0.0.1]", "127.0.0.1")
		port := ask(out, reader, "MySQL port [3306]", "3306")
		user := ask(out, reader, "MySQL user [dbexec]", "dbexec")
		database := ask(out, reader, "Default database (optional)", "")
		format := ask(out, reader, "Default output format [text]", "text")
		tool := ask(out, reader, "Online migration tool [gh-ost]", migration.DefaultTool)

		var config strings.Builder
		config.WriteString("# dbexec configuration\n\n")

		config.WriteString("connections:\n")
		config.WriteString("  default:\n")
		fmt.Fprintf(&config, "    host: %s\n", host)
		fmt.Fprintf(&config, "    port: %s\n", port)
		fmt.Fprintf(&config, "    user: %s\n", user)
		config.WriteString("    # password: omitted for security, will prompt\n")
		if database != "" {
			fmt.Fprintf(&config, "    database: %s\n", database)
		}

		config.WriteString("\ndefaults:\n")
		fmt.Fprintf(&config, "  format: %s\n", format)

		config.WriteString("\nonline_migration:\n")
		config.WriteString("  enabled: false\n")
		fmt.Fprintf(&config, "  tool: %s\n", tool)
		fmt.Fprintf(&config, "  socket_dir: %s\n", migration.DefaultSocketDir)

		config.WriteString("\nwatchdog:\n")
		config.WriteString("  interval: 1s\n")
		config.WriteString("  grace: 2s\n")

		config.WriteString("\nrollback:\n")
		config.WriteString("  timeout: 30s\n")
		config.WriteString("  # server_id: 0 picks a random replica id\n")

		config.WriteString("\n# notify:\n")
		config.WriteString("#   kafka:\n")
		config.WriteString("#     brokers: [\"localhost:9092\"]\n")
		config.WriteString("#     topic: dbexec.progress\n")

		config.WriteString("\nlog:\n")
		config.WriteString("  level: warn\n")
		config.WriteString("  format: text\n")

		if err := os.WriteFile(configPath, []byte(config.String()), 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(out, "\n✅ Config written to %s\n", configPath)

		// Don't recommend creating root user
		if user != "root" {
			fmt.Fprintln(out, "\nRecommended grants for the dbexec user:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  CREATE USER '%s'@'%%' IDENTIFIED BY '<password>';\n", user)
			fmt.Fprintf(out, "  GRANT SELECT, INSERT, UPDATE, DELETE, CREATE, ALTER, DROP, INDEX ON <db>.* TO '%s'@'%%';\n", user)
			fmt.Fprintf(out, "  GRANT PROCESS, REPLICATION CLIENT, REPLICATION SLAVE ON *.* TO '%s'@'%%';\n", user)
			fmt.Fprintln(out)
		}

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Fprintln(out, "No config file found.")
			fmt.Fprintln(out, "Run 'dbexec config init' to create one.")
			return nil
		}

		fmt.Fprintf(out, "Config file: %s\n\n", configFile)

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Fprintln(out, string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// ask prints prompt and returns the trimmed answer, or def when it's empty.
func ask(w io.Writer, r *bufio.Reader, prompt, def string) string {
	fmt.Fprintf(w, "%s: ", prompt)
	answer, _ := r.ReadString('\n')
	if answer = strings.TrimSpace(answer); answer == "" {
		return def
	}
	return answer
}
