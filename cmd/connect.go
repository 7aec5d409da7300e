package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/output"
)

// connectDB is swapped out in tests.
var connectDB = mysql.Connect

var connectCmd = &cobra.Command{
	Use:          "connect",
	Short:        "Test connection and show rollback capture readiness",
	SilenceUsage: true, // Don't show usage on errors
	Long: `Connect to a MySQL instance and report the server version plus the
binary log settings (log_bin, binlog_format, gtid_mode, binlog_row_image)
that decide whether DML rollback statements can be captured. When they can,
the current binlog position is shown too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(cmd.Context(), cmd.OutOrStdout(), connectionConfig(), viper.GetString("format"))
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(ctx context.Context, w io.Writer, connCfg mysql.ConnectionConfig, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := connectDB(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	env, err := environment.Probe(ctx, conn)
	if err != nil {
		return fmt.Errorf("environment probe failed: %w", err)
	}

	var pos *mysql.Position
	if env.Supported() {
		p, err := mysql.ReadPosition(ctx, conn, env.Version)
		if err != nil {
			return fmt.Errorf("reading binlog position: %w", err)
		}
		pos = &p
	}

	output.NewRenderer(format, w).RenderConnection(connCfg, env, pos)
	return nil
}
