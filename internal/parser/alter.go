package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrAlterUnparsable means the ALTER is outside the subset the migration
// tool invocation can express.
var ErrAlterUnparsable = errors.New("ALTER not supported by migration tool")

// ALTER TABLE <tbl> ADD|CHANGE|RENAME|MODIFY|DROP ...
var reMigratableAlter = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+(\S+)\s+(ADD|CHANGE|RENAME|MODIFY|DROP)\b(.*)$`)

// AlterSpec is an ALTER reduced to what the migration tool takes as flags.
type AlterSpec struct {
	Database string // schema qualifier from the statement, if any
	Table    string
	Clause   string // value for --alter
}

// ParseAlterForMigration extracts the table and change clause from an ALTER.
// Backticks are removed and double quotes become single quotes so the clause
// survives as a single command-line argument.
func ParseAlterForMigration(text string) (*AlterSpec, error) {
	m := reMigratableAlter.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlterUnparsable, text)
	}

	db, table := splitQualified(strings.ReplaceAll(m[1], "`", ""))
	if table == "" {
		return nil, fmt.Errorf("%w: %s", ErrAlterUnparsable, text)
	}

	clause := m[2] + m[3]
	clause = strings.ReplaceAll(clause, "`", "")
	clause = strings.ReplaceAll(clause, `"`, "'")

	return &AlterSpec{
		Database: db,
		Table:    table,
		Clause:   strings.TrimSpace(clause),
	}, nil
}

// splitQualified splits a possibly-qualified name (db.table or table) into (db, name).
func splitQualified(name string) (string, string) {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
