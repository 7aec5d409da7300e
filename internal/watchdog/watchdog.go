// Package watchdog polls the processlist row of an executing session from a
// side connection so that lock waits are visible before the statement returns.
package watchdog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/notify"
)

const (
	DefaultInterval = time.Second
	DefaultGrace    = 2 * time.Second
)

// Opener opens the watchdog's own connection. It must not hand out the
// connection that runs the monitored statement.
type Opener func(ctx context.Context) (*sql.DB, error)

// Watchdog starts one monitor per executing statement.
type Watchdog struct {
	Open     Opener
	Notifier notify.Notifier
	Interval time.Duration
	Grace    time.Duration // how long Stop waits for the poller to exit
	Log      logrus.FieldLogger

	// OpenAttempts bounds connection attempts. Zero means 3.
	OpenAttempts uint64
}

// Handle controls one running monitor.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	grace  time.Duration
}

// Done is closed once the monitor has exited and closed its connection.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop cancels the monitor and waits up to the grace period for it to exit.
// It reports whether the monitor exited in time. Publishing is gated on the
// monitor's context, so nothing new is published once Stop has cancelled it.
func (h *Handle) Stop() bool {
	h.cancel()
	t := time.NewTimer(h.grace)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// Start begins polling for threadID in the background and returns at once.
// Failures end the monitor and are only logged.
func (w *Watchdog) Start(ctx context.Context, viewerID string, threadID uint64) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
		grace:  w.grace(),
	}

	log := w.logger().WithFields(logrus.Fields{
		"viewer":    viewerID,
		"thread_id": threadID,
	})

	go func() {
		defer close(h.done)

		db, err := w.open(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("watchdog could not open its connection")
			}
			return
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Debug("closing watchdog connection")
			}
		}()

		w.poll(ctx, db, viewerID, threadID, log)
	}()

	return h
}

func (w *Watchdog) poll(ctx context.Context, db *sql.DB, viewerID string, threadID uint64, log logrus.FieldLogger) {
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	for {
		snap, err := mysql.GetProcess(ctx, db, threadID)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, mysql.ErrNoProcess):
				log.Debug("monitored session ended")
			default:
				log.WithError(err).Warn("watchdog poll failed")
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
		msg := notify.Message{Status: notify.StatusMonitoring, Data: snap}
		if err := w.notifier().Publish(ctx, viewerID, msg); err != nil && ctx.Err() == nil {
			log.WithError(err).Debug("publishing processlist snapshot")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watchdog) open(ctx context.Context) (*sql.DB, error) {
	if w.Open == nil {
		return nil, errors.New("watchdog has no connection opener")
	}

	attempts := w.OpenAttempts
	if attempts == 0 {
		attempts = 3
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = time.Second

	var db *sql.DB
	err := backoff.Retry(func() error {
		var err error
		db, err = w.Open(ctx)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (w *Watchdog) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return DefaultInterval
}

func (w *Watchdog) grace() time.Duration {
	if w.Grace > 0 {
		return w.Grace
	}
	return DefaultGrace
}

func (w *Watchdog) notifier() notify.Notifier {
	if w.Notifier != nil {
		return w.Notifier
	}
	return notify.Discard
}

func (w *Watchdog) logger() logrus.FieldLogger {
	if w.Log != nil {
		return w.Log
	}
	return logrus.StandardLogger()
}
