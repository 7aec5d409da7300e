package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
)

// MarkdownRenderer produces markdown output for change tickets.
type MarkdownRenderer struct {
	w io.Writer
}

func (r *MarkdownRenderer) RenderOutcome(statement string, out *executor.Outcome) {
	fmt.Fprintf(r.w, "# dbexec — %s Execution\n\n", orDash(string(out.Category)))
	if statement != "" {
		fmt.Fprintf(r.w, "```sql\n%s\n```\n\n", statement)
	}

	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Status | **%s** |\n", out.Status)
	fmt.Fprintf(r.w, "| Rows affected | %s |\n", formatNumber(out.AffectedRows))
	fmt.Fprintf(r.w, "| Time taken | %s |\n", out.RuntimeString())
	fmt.Fprintf(r.w, "| Run ID | `%s` |\n\n", out.RunID)

	fmt.Fprintf(r.w, "## Execution Log\n\n```\n%s\n```\n\n", strings.TrimRight(out.Log, "\n"))

	fmt.Fprintf(r.w, "## Rollback\n\n")
	if len(out.Rollback) == 0 {
		fmt.Fprintf(r.w, "_No rollback statements captured._\n")
		return
	}
	fmt.Fprintf(r.w, "```sql\n%s\n```\n", strings.Join(out.Rollback, "\n"))
}

func (r *MarkdownRenderer) RenderConnection(conn mysql.ConnectionConfig, env *environment.Report, pos *mysql.Position) {
	fmt.Fprintf(r.w, "# dbexec — Connection Info\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Connected to | `%s` |\n", conn.Address())
	fmt.Fprintf(r.w, "| Version | %s |\n", env.Version.String())
	fmt.Fprintf(r.w, "| Read only | %v |\n", env.ReadOnly)
	fmt.Fprintf(r.w, "| log_bin | %s |\n", onOff(env.LogBin))
	fmt.Fprintf(r.w, "| binlog_format | %s |\n", orDash(env.Format))
	fmt.Fprintf(r.w, "| gtid_mode | %s |\n", orDash(env.GTIDMode))
	fmt.Fprintf(r.w, "| binlog_row_image | %s |\n", orDash(env.RowImage))
	if pos != nil {
		fmt.Fprintf(r.w, "| Binlog position | `%s` |\n", pos)
	}
	fmt.Fprintln(r.w)

	if env.Supported() {
		fmt.Fprintf(r.w, "Rollback capture: **supported**\n")
		return
	}
	fmt.Fprintf(r.w, "Rollback capture: **not supported**\n\n")
	for _, d := range env.Deficiencies {
		fmt.Fprintf(r.w, "- %s\n", d)
	}
}
