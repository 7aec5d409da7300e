// Package notify delivers live progress messages to the viewer who
// requested an execution.
package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/multierr"
)

// Status tags what a message carries.
type Status string

const (
	// StatusMonitoring messages carry a processlist snapshot of the
	// executing session.
	StatusMonitoring Status = "monitoring"
	// StatusProgress messages carry one line of migration tool output.
	StatusProgress Status = "progress"
)

// Message is the payload pushed to a viewer.
type Message struct {
	Status Status `json:"status"`
	Data   any    `json:"data"`
}

// Encode returns the JSON wire form of the message.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Notifier publishes messages for a viewer. Delivery is best effort; an
// implementation should preserve order per viewer.
type Notifier interface {
	Publish(ctx context.Context, viewerID string, msg Message) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, viewerID string, msg Message) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, viewerID string, msg Message) error {
	return f(ctx, viewerID, msg)
}

// Discard drops every message.
var Discard Notifier = Func(func(context.Context, string, Message) error { return nil })

// Multi publishes to every notifier in order and returns the combined errors.
type Multi []Notifier

// Publish fans msg out to all notifiers. A failing notifier doesn't stop
// delivery to the rest.
func (m Multi) Publish(ctx context.Context, viewerID string, msg Message) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Publish(ctx, viewerID, msg))
	}
	return err
}
