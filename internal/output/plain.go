package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
)

// PlainRenderer produces unformatted text output safe for piping.
type PlainRenderer struct {
	w io.Writer
}

func (r *PlainRenderer) RenderOutcome(statement string, out *executor.Outcome) {
	fmt.Fprintf(r.w, "=== dbexec — %s Execution ===\n\n", orDash(string(out.Category)))

	fmt.Fprintf(r.w, "Status:        %s\n", out.Status)
	fmt.Fprintf(r.w, "Rows affected: %s\n", formatNumber(out.AffectedRows))
	fmt.Fprintf(r.w, "Time taken:    %s\n", out.RuntimeString())
	fmt.Fprintf(r.w, "Run ID:        %s\n", out.RunID)
	fmt.Fprintln(r.w)

	if statement != "" {
		fmt.Fprintf(r.w, "--- Statement ---\n%s\n\n", statement)
	}

	fmt.Fprintf(r.w, "--- Execution Log ---\n%s\n\n", strings.TrimRight(out.Log, "\n"))

	fmt.Fprintf(r.w, "--- Rollback ---\n")
	if len(out.Rollback) == 0 {
		fmt.Fprintf(r.w, "No rollback statements captured.\n")
		return
	}
	for _, stmt := range out.Rollback {
		fmt.Fprintf(r.w, "%s\n", stmt)
	}
}

func (r *PlainRenderer) RenderConnection(conn mysql.ConnectionConfig, env *environment.Report, pos *mysql.Position) {
	fmt.Fprintf(r.w, "=== dbexec — Connection Info ===\n\n")
	fmt.Fprintf(r.w, "Connected to:     %s\n", conn.Address())
	fmt.Fprintf(r.w, "Version:          %s\n", env.Version.String())
	fmt.Fprintf(r.w, "Read only:        %v\n", env.ReadOnly)
	fmt.Fprintf(r.w, "log_bin:          %s\n", onOff(env.LogBin))
	fmt.Fprintf(r.w, "binlog_format:    %s\n", orDash(env.Format))
	fmt.Fprintf(r.w, "gtid_mode:        %s\n", orDash(env.GTIDMode))
	fmt.Fprintf(r.w, "binlog_row_image: %s\n", orDash(env.RowImage))
	if pos != nil {
		fmt.Fprintf(r.w, "Binlog position:  %s\n", pos)
	}

	if env.Supported() {
		fmt.Fprintf(r.w, "Rollback capture: supported\n")
		return
	}
	fmt.Fprintf(r.w, "Rollback capture: not supported\n")
	for _, d := range env.Deficiencies {
		fmt.Fprintf(r.w, "  - %s\n", d)
	}
}
