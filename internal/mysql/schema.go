package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned when information_schema has no columns for a table.
var ErrTableNotFound = errors.New("table not found")

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string
	DataType   string // e.g. "int", "varchar"
	ColumnType string // full type, e.g. "int unsigned"
	Nullable   bool
	Position   int
}

// Unsigned reports whether an integer column was declared UNSIGNED.
func (c ColumnInfo) Unsigned() bool {
	return strings.Contains(strings.ToLower(c.ColumnType), "unsigned")
}

// TableColumns is the column layout of a table, in ordinal order, plus its
// primary key. Row events carry values positionally, so this is what turns
// them back into named columns.
type TableColumns struct {
	Database   string
	Table      string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// Names returns the column names in ordinal order.
func (t *TableColumns) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling any
// backticks inside it.
func QuoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// QuoteQualified quotes a schema-qualified table name.
func QuoteQualified(database, table string) string {
	if database == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(database) + "." + QuoteIdentifier(table)
}

// GetTableColumns loads the column layout and primary key of a table.
func GetTableColumns(ctx context.Context, q Queryer, database, table string) (*TableColumns, error) {
	tc := &TableColumns{Database: database, Table: table}

	rows, err := q.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			COLUMN_TYPE,
			IS_NULLABLE,
			ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, database, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &col.ColumnType, &nullable, &col.Position); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		tc.Columns = append(tc.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(tc.Columns) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", database, table, ErrTableNotFound)
	}

	tc.PrimaryKey, err = getPrimaryKey(ctx, q, database, table)
	if err != nil {
		return nil, fmt.Errorf("querying primary key: %w", err)
	}

	return tc, nil
}

func getPrimaryKey(ctx context.Context, q Queryer, database, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT COLUMN_NAME
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND INDEX_NAME = 'PRIMARY'
		ORDER BY SEQ_IN_INDEX
	`, database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}
