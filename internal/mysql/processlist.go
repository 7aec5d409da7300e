package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoProcess means the thread is no longer listed in the processlist.
var ErrNoProcess = errors.New("thread not in processlist")

// ProcessListSnapshot is one information_schema.PROCESSLIST row.
type ProcessListSnapshot struct {
	ID      uint64 `json:"id"`
	User    string `json:"user"`
	Host    string `json:"host"`
	DB      string `json:"db"`
	Command string `json:"command"`
	Time    int64  `json:"time"`
	State   string `json:"state"`
	Info    string `json:"info"`
}

// ConnectionID returns the server thread id of the session behind q.
// Callers pass a *sql.Conn so the id refers to a pinned session.
func ConnectionID(ctx context.Context, q Queryer) (uint64, error) {
	var id uint64
	if err := q.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		return 0, fmt.Errorf("reading connection id: %w", err)
	}
	return id, nil
}

// GetProcess reads the processlist row for one thread.
func GetProcess(ctx context.Context, q Queryer, id uint64) (*ProcessListSnapshot, error) {
	var (
		snap                  ProcessListSnapshot
		db, state, info, user sql.NullString
		host, command         sql.NullString
		seconds               sql.NullInt64
	)

	err := q.QueryRowContext(ctx, `
		SELECT ID, USER, HOST, DB, COMMAND, TIME, STATE, INFO
		FROM information_schema.PROCESSLIST
		WHERE ID = ?
	`, id).Scan(&snap.ID, &user, &host, &db, &command, &seconds, &state, &info)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoProcess
		}
		return nil, fmt.Errorf("querying processlist: %w", err)
	}

	snap.User = user.String
	snap.Host = host.String
	snap.DB = db.String
	snap.Command = command.String
	snap.Time = seconds.Int64
	snap.State = state.String
	snap.Info = info.String

	return &snap, nil
}
