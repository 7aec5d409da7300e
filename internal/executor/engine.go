package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// result is what running one statement produced.
type result struct {
	rows    int64
	runtime time.Duration
	err     error
}

// log renders the execution log lines for the result.
func (r result) log() string {
	if r.err != nil {
		return fmt.Sprintf("status: execution failed\nerror: %s\n", r.err.Error())
	}
	return fmt.Sprintf("status: execution succeeded\nrows affected: %d\ntime taken: %s\n", r.rows, formatRuntime(r.runtime))
}

// runStatement executes text as one transaction on the pinned connection.
// It never retries: a statement that failed part way may have had effects.
func runStatement(ctx context.Context, conn *sql.Conn, text string) result {
	start := time.Now()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result{runtime: time.Since(start), err: err}
	}

	res, err := tx.ExecContext(ctx, text)
	if err != nil {
		rollbackQuietly(tx)
		return result{runtime: time.Since(start), err: err}
	}

	rows, err := res.RowsAffected()
	if err != nil {
		rollbackQuietly(tx)
		return result{runtime: time.Since(start), err: err}
	}

	if err := tx.Commit(); err != nil {
		return result{runtime: time.Since(start), err: err}
	}

	return result{rows: rows, runtime: time.Since(start)}
}

func rollbackQuietly(tx *sql.Tx) {
	// The statement error is what gets reported; a failed rollback on a
	// broken session adds nothing.
	_ = tx.Rollback()
}
