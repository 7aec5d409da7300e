package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBinlogDisabled is returned when the coordinates query yields no row,
// which is what the server does when binary logging is off.
var ErrBinlogDisabled = errors.New("binary logging is disabled")

// Position is a binlog coordinate: log file name plus byte offset.
type Position struct {
	File string `json:"file"`
	Pos  uint32 `json:"position"`
}

// String renders the coordinate as file:offset.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Pos)
}

// IsZero reports whether the position was never read.
func (p Position) IsZero() bool {
	return p.File == "" && p.Pos == 0
}

// Compare orders positions. Files with the same base name are ordered by
// their numeric sequence suffix, which outgrows its zero padding after
// mysql-bin.999999.
func (p Position) Compare(o Position) int {
	if c := compareFiles(p.File, o.File); c != 0 {
		return c
	}
	switch {
	case p.Pos < o.Pos:
		return -1
	case p.Pos > o.Pos:
		return 1
	}
	return 0
}

func compareFiles(a, b string) int {
	ab, as, aok := splitSequence(a)
	bb, bs, bok := splitSequence(b)
	if aok && bok && ab == bb {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func splitSequence(file string) (string, uint64, bool) {
	i := strings.LastIndexByte(file, '.')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(file[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return file[:i], n, true
}

// ReadPosition returns the server's current binlog coordinate. It must run
// on the same session that will execute the statement so that the pair of
// reads around it brackets that statement's events.
func ReadPosition(ctx context.Context, q Queryer, version ServerVersion) (Position, error) {
	query := "SHOW MASTER STATUS"
	if version.UsesBinaryLogStatus() {
		query = "SHOW BINARY LOG STATUS"
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return Position{}, fmt.Errorf("%s: %w", strings.ToLower(query), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Position{}, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Position{}, err
		}
		return Position{}, ErrBinlogDisabled
	}

	// Column count differs across flavors (MariaDB has no Executed_Gtid_Set).
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Position{}, fmt.Errorf("scanning binlog status: %w", err)
	}

	var pos Position
	for i, col := range cols {
		switch strings.ToLower(col) {
		case "file":
			pos.File = values[i].String
		case "position":
			n, err := strconv.ParseUint(values[i].String, 10, 32)
			if err != nil {
				return Position{}, fmt.Errorf("parsing binlog offset %q: %w", values[i].String, err)
			}
			pos.Pos = uint32(n)
		}
	}

	if pos.File == "" {
		return Position{}, ErrBinlogDisabled
	}

	return pos, nil
}
