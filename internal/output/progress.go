package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/notify"
)

// Progress writes live notifications to a terminal or pipe while a
// statement runs. It satisfies notify.Notifier.
type Progress struct {
	format string
	mu     sync.Mutex
	w      io.Writer
}

// NewProgress creates a progress writer for the given output format. JSON
// output is one encoded message per line.
func NewProgress(format string, w io.Writer) *Progress {
	return &Progress{format: format, w: w}
}

func (p *Progress) Publish(_ context.Context, _ string, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		b, err := msg.Encode()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", b)
		return err
	}

	line := describe(msg)
	if p.format == "text" || p.format == "" {
		if waitingOnLock(msg) {
			line = WarnText.Render(IconLock + " " + line)
		} else {
			line = MutedText.Render(line)
		}
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

func waitingOnLock(msg notify.Message) bool {
	snap, ok := msg.Data.(*mysql.ProcessListSnapshot)
	return ok && strings.Contains(strings.ToLower(snap.State), "lock")
}

func describe(msg notify.Message) string {
	switch data := msg.Data.(type) {
	case *mysql.ProcessListSnapshot:
		state := data.State
		if state == "" {
			state = data.Command
		}
		return fmt.Sprintf("[%s] thread %d: %s (%ds)", msg.Status, data.ID, state, data.Time)
	case string:
		return fmt.Sprintf("[%s] %s", msg.Status, data)
	default:
		return fmt.Sprintf("[%s] %v", msg.Status, data)
	}
}
