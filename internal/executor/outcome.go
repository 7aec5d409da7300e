package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nethalo/dbexec/internal/parser"
)

// Status is the terminal state of one execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusWarn    Status = "warn"
)

// Outcome is the single result produced for every statement.
type Outcome struct {
	RunID        uuid.UUID
	Category     parser.Category
	Status       Status
	AffectedRows int64
	Runtime      time.Duration
	Log          string
	Rollback     []string // undo statements, most recent change first
}

// RuntimeString formats the runtime the way the execution log does.
func (o *Outcome) RuntimeString() string {
	return formatRuntime(o.Runtime)
}

func formatRuntime(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// MarshalJSON renders the outcome for callers outside Go.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	rollback := o.Rollback
	if rollback == nil {
		rollback = []string{}
	}
	return json.Marshal(struct {
		RunID          string   `json:"run_id"`
		Category       string   `json:"category,omitempty"`
		Status         Status   `json:"status"`
		AffectedRows   int64    `json:"affected_rows"`
		RuntimeSeconds float64  `json:"runtime_seconds"`
		Runtime        string   `json:"runtime"`
		Log            string   `json:"execution_log"`
		Rollback       []string `json:"rollback_statements"`
	}{
		RunID:          o.RunID.String(),
		Category:       string(o.Category),
		Status:         o.Status,
		AffectedRows:   o.AffectedRows,
		RuntimeSeconds: o.Runtime.Seconds(),
		Runtime:        o.RuntimeString(),
		Log:            o.Log,
		Rollback:       rollback,
	})
}

// ConnectionError means no session could be established for the statement.
// It is the only failure Execute returns as an error; callers treat it as
// fatal for the attempt.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
