package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
)

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w io.Writer
}

func (r *TextRenderer) RenderOutcome(statement string, out *executor.Outcome) {
	width := 60

	title := "dbexec — Execution"
	if out.Category != "" {
		title = fmt.Sprintf("dbexec — %s Execution", out.Category)
	}
	header := TitleStyle.Render(title)
	fmt.Fprintln(r.w)

	lines := []string{
		r.labelValue("Status:", r.colorStatus(out.Status)),
		r.labelValue("Rows affected:", formatNumber(out.AffectedRows)),
		r.labelValue("Time taken:", out.RuntimeString()),
		r.labelValue("Run ID:", MutedText.Render(out.RunID.String())),
	}
	fmt.Fprintln(r.w, statusBox(out.Status).Width(width).Render(header+"\n"+strings.Join(lines, "\n")))

	if statement != "" {
		stmtBox := BoxStyle.Width(width).Render(TitleStyle.Render("Statement") + "\n" + CodeStyle.Render(statement))
		fmt.Fprintln(r.w, stmtBox)
	}

	logBox := BoxStyle.Width(width).Render(TitleStyle.Render("Execution Log") + "\n" + strings.TrimRight(out.Log, "\n"))
	fmt.Fprintln(r.w, logBox)

	r.renderRollback(out, width)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) renderRollback(out *executor.Outcome, width int) {
	var content strings.Builder
	content.WriteString(TitleStyle.Render("Rollback") + "\n")

	if len(out.Rollback) == 0 {
		content.WriteString(MutedText.Render("No rollback statements captured."))
	} else {
		content.WriteString(MutedText.Render(fmt.Sprintf("%d statement(s), most recent change first:", len(out.Rollback))))
		for _, stmt := range out.Rollback {
			content.WriteString("\n" + CodeStyle.Render(stmt))
		}
	}

	fmt.Fprintln(r.w, BoxStyle.Width(width).Render(content.String()))
}

func (r *TextRenderer) RenderConnection(conn mysql.ConnectionConfig, env *environment.Report, pos *mysql.Position) {
	width := 60
	fmt.Fprintln(r.w)

	lines := []string{
		r.labelValue("Connected to:", conn.Address()),
		r.labelValue("Server version:", env.Version.String()),
		r.labelValue("Read only:", fmt.Sprintf("%v", env.ReadOnly)),
		r.labelValue("log_bin:", onOff(env.LogBin)),
		r.labelValue("binlog_format:", orDash(env.Format)),
		r.labelValue("gtid_mode:", orDash(env.GTIDMode)),
		r.labelValue("binlog_row_image:", orDash(env.RowImage)),
	}
	if pos != nil {
		lines = append(lines, r.labelValue("Binlog position:", pos.String()))
	}

	style := SuccessBoxStyle
	capture := SuccessText.Render(IconSuccess + " supported")
	if !env.Supported() {
		style = WarnBoxStyle
		capture = WarnText.Render(IconWarn + " not supported")
	}
	lines = append(lines, r.labelValue("Rollback capture:", capture))
	for _, d := range env.Deficiencies {
		lines = append(lines, "  "+MutedText.Render("- "+d))
	}

	title := TitleStyle.Render("dbexec — Connection Info")
	fmt.Fprintln(r.w, style.Width(width).Render(title+"\n"+strings.Join(lines, "\n")))
	fmt.Fprintln(r.w)
}

// helpers

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func (r *TextRenderer) colorStatus(s executor.Status) string {
	switch s {
	case executor.StatusSuccess:
		return SuccessText.Render(IconSuccess + " " + string(s))
	case executor.StatusWarn:
		return WarnText.Render(IconWarn + " " + string(s))
	case executor.StatusFail:
		return FailText.Render(IconFail + " " + string(s))
	default:
		return string(s)
	}
}

func statusBox(s executor.Status) lipgloss.Style {
	switch s {
	case executor.StatusSuccess:
		return SuccessBoxStyle
	case executor.StatusWarn:
		return WarnBoxStyle
	default:
		return FailBoxStyle
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatNumber(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.0f,000,000,000+", float64(n)/1_000_000_000)
	}
	// Simple comma formatting
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
