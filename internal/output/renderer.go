package output

import (
	"io"

	"github.com/nethalo/dbexec/internal/environment"
	"github.com/nethalo/dbexec/internal/executor"
	"github.com/nethalo/dbexec/internal/mysql"
)

// Renderer defines the output interface.
type Renderer interface {
	RenderOutcome(statement string, out *executor.Outcome)
	RenderConnection(conn mysql.ConnectionConfig, env *environment.Report, pos *mysql.Position)
}

// NewRenderer creates a renderer for the given format.
func NewRenderer(format string, w io.Writer) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w}
	case "markdown":
		return &MarkdownRenderer{w: w}
	case "plain":
		return &PlainRenderer{w: w}
	default:
		return &TextRenderer{w: w}
	}
}
