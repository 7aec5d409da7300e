package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/migration"
	"github.com/nethalo/dbexec/internal/notify"
	"github.com/nethalo/dbexec/internal/output"
	"github.com/nethalo/dbexec/internal/rollback"
	"github.com/nethalo/dbexec/internal/watchdog"
)

// maxSQLFileSize bounds --file input.
const maxSQLFileSize = 10 * 1024 * 1024

var execCmd = &cobra.Command{
	Use:   "exec [SQL statement]",
	Short: "Execute one DDL or DML statement under supervision",
	Long: `Execute a single MySQL DDL or DML statement and report:
  - Status (success, fail, warn)
  - Rows affected and time taken
  - The server's error text on failure
  - Rollback statements for DML, when the binlog allows capturing them

Metadata lock waits on the executing thread are reported while the
statement runs. With --online-migration, ALTER TABLE is run through gh-ost.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlText, err := getSQLInput(cmd, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		format := viper.GetString("format")

		notifier, closeNotifier, err := buildNotifier(format, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeNotifier()

		online, _ := cmd.Flags().GetBool("online-migration")
		engine := newEngine(notifier, log)
		engine.OnlineMigration = online || viper.GetBool("online_migration.enabled")

		viewer, _ := cmd.Flags().GetString("viewer")
		out, err := engine.Execute(ctx, executor.Statement{
			SQL:      sqlText,
			Conn:     connectionConfig(),
			ViewerID: viewer,
		})

		output.NewRenderer(format, cmd.OutOrStdout()).RenderOutcome(sqlText, out)

		var connErr *executor.ConnectionError
		if errors.As(err, &connErr) {
			return fmt.Errorf("connection failed: %w", connErr)
		}

		rollbackFile, _ := cmd.Flags().GetString("rollback-file")
		if rollbackFile != "" && len(out.Rollback) > 0 {
			if err := writeRollbackFile(rollbackFile, out.Rollback); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write rollback to %s: %v\n", rollbackFile, err)
			}
		}

		if out.Status == executor.StatusFail {
			return fmt.Errorf("execution failed (run %s)", out.RunID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().String("file", "", "Read SQL from file instead of argument")
	execCmd.Flags().String("viewer", os.Getenv("USER"), "Viewer id that progress messages are addressed to")
	execCmd.Flags().Bool("online-migration", false, "Run ALTER TABLE through gh-ost")
	execCmd.Flags().String("rollback-file", "", "Write generated rollback statements to this file")
}

// newEngine wires the execution engine from configuration.
func newEngine(notifier notify.Notifier, log logrus.FieldLogger) *executor.Engine {
	return &executor.Engine{
		Notifier: notifier,
		Generator: &rollback.BinlogGenerator{
			ServerID: viper.GetUint32("rollback.server_id"),
			Timeout:  viper.GetDuration("rollback.timeout"),
			Log:      log,
		},
		Migrator: &migration.Adapter{
			Tool:      viper.GetString("online_migration.tool"),
			Args:      viper.GetStringSlice("online_migration.args"),
			SocketDir: viper.GetString("online_migration.socket_dir"),
			Notifier:  notifier,
			Log:       log,
		},
		Watchdog: watchdog.Watchdog{
			Interval: viper.GetDuration("watchdog.interval"),
			Grace:    viper.GetDuration("watchdog.grace"),
		},
		Log: log,
	}
}

// buildNotifier always reports progress on w and adds the Kafka sink when
// brokers are configured.
func buildNotifier(format string, w io.Writer) (notify.Notifier, func(), error) {
	progress := output.NewProgress(format, w)

	brokers := viper.GetStringSlice("notify.kafka.brokers")
	if len(brokers) == 0 {
		return progress, func() {}, nil
	}

	k, err := notify.NewKafka(notify.KafkaConfig{
		Brokers:               brokers,
		Topic:                 viper.GetString("notify.kafka.topic"),
		SASLMechanism:         viper.GetString("notify.kafka.sasl_mechanism"),
		SASLUsername:          viper.GetString("notify.kafka.sasl_username"),
		SASLPassword:          viper.GetString("notify.kafka.sasl_password"),
		TLSEnable:             viper.GetBool("notify.kafka.tls"),
		TLSInsecureSkipVerify: viper.GetBool("notify.kafka.tls_skip_verify"),
		WriteTimeout:          viper.GetDuration("notify.kafka.write_timeout"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka notifier: %w", err)
	}
	return notify.Multi{progress, k}, func() { k.Close() }, nil
}

func writeRollbackFile(path string, statements []string) error {
	return os.WriteFile(path, []byte(strings.Join(statements, "\n")+"\n"), 0600)
}

func getSQLInput(cmd *cobra.Command, args []string) (string, error) {
	filePath, _ := cmd.Flags().GetString("file")

	if filePath != "" {
		if err := validateSQLFilePath(filePath); err != nil {
			return "", err
		}
		data, err := os.ReadFile(filepath.Clean(filePath))
		if err != nil {
			return "", fmt.Errorf("could not read file %s: %w", filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	return "", fmt.Errorf("provide a SQL statement as argument or use --file flag")
}

// validateSQLFilePath rejects anything but a regular file of sane size.
func validateSQLFilePath(path string) error {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > maxSQLFileSize {
		return fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxSQLFileSize)
	}
	return nil
}

