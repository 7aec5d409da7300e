package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const versionTemplate = `dbexec {{.Version}}

Supported servers:
  • MySQL 8.0 and 8.4 LTS (including Percona Server)
  • MariaDB 10.x / 11.x (rollback capture needs FULL row images)

Rollback capture requires log_bin=ON, binlog_format=ROW and gtid_mode=ON.
`

// Version is set at build time via ldflags
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print dbexec version and supported servers",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dbexec %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Fprintln(out, "Supported servers:")
		fmt.Fprintln(out, "  • MySQL 8.0 and 8.4 LTS (including Percona Server)")
		fmt.Fprintln(out, "  • MariaDB 10.x / 11.x (rollback capture needs FULL row images)")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Rollback capture requires log_bin=ON, binlog_format=ROW and gtid_mode=ON.")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Enable the standard --version flag, matching the `version` subcommand output.
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, CommitSHA, BuildDate)
	rootCmd.SetVersionTemplate(versionTemplate)
}
