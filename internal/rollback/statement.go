package rollback

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vitess.io/vitess/go/sqltypes"

	"github.com/nethalo/dbexec/internal/mysql"
)

// timestampLayout also accepts a fractional seconds suffix when parsing.
const timestampLayout = "2006-01-02 15:04:05"

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

func (k changeKind) String() string {
	switch k {
	case changeInsert:
		return "insert"
	case changeUpdate:
		return "update"
	case changeDelete:
		return "delete"
	}
	return "unknown"
}

// rowChange is one row image (two for updates) read from a rows event.
type rowChange struct {
	kind   changeKind
	table  *mysql.TableColumns
	before []any // nil for inserts
	after  []any // nil for deletes
}

// reverse renders the statement that undoes the change.
//
//	insert -> DELETE matching the inserted row
//	delete -> INSERT of the deleted row
//	update -> UPDATE back to the before image, matching the after image
func (c rowChange) reverse() (string, error) {
	name := mysql.QuoteQualified(c.table.Database, c.table.Table)

	switch c.kind {
	case changeInsert:
		where, err := c.where(c.after)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DELETE FROM %s WHERE %s LIMIT 1;", name, where), nil

	case changeDelete:
		if err := c.checkWidth(c.before); err != nil {
			return "", err
		}
		cols := make([]string, len(c.before))
		vals := make([]string, len(c.before))
		for i, v := range c.before {
			lit, err := c.literal(i, v)
			if err != nil {
				return "", err
			}
			cols[i] = mysql.QuoteIdentifier(c.table.Columns[i].Name)
			vals[i] = lit
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
			name, strings.Join(cols, ", "), strings.Join(vals, ", ")), nil

	case changeUpdate:
		if err := c.checkWidth(c.before); err != nil {
			return "", err
		}
		sets := make([]string, 0, len(c.before))
		for i, v := range c.before {
			lit, err := c.literal(i, v)
			if err != nil {
				return "", err
			}
			sets = append(sets, mysql.QuoteIdentifier(c.table.Columns[i].Name)+"="+lit)
		}
		where, err := c.where(c.after)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s LIMIT 1;",
			name, strings.Join(sets, ", "), where), nil
	}

	return "", fmt.Errorf("unsupported change kind %d", c.kind)
}

func (c rowChange) checkWidth(row []any) error {
	if len(row) != len(c.table.Columns) {
		return fmt.Errorf("%s.%s: row has %d values but table has %d columns",
			c.table.Database, c.table.Table, len(row), len(c.table.Columns))
	}
	return nil
}

// where identifies a row by its primary key, or by every column when the
// table has none.
func (c rowChange) where(row []any) (string, error) {
	if err := c.checkWidth(row); err != nil {
		return "", err
	}

	var indexes []int
	if len(c.table.PrimaryKey) > 0 {
		for _, pk := range c.table.PrimaryKey {
			idx := c.columnIndex(pk)
			if idx < 0 {
				return "", fmt.Errorf("primary key column %q not in table %s", pk, c.table.Table)
			}
			indexes = append(indexes, idx)
		}
	} else {
		for i := range row {
			indexes = append(indexes, i)
		}
	}

	conds := make([]string, 0, len(indexes))
	for _, i := range indexes {
		col := mysql.QuoteIdentifier(c.table.Columns[i].Name)
		if row[i] == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		lit, err := c.literal(i, row[i])
		if err != nil {
			return "", err
		}
		conds = append(conds, col+"="+lit)
	}
	return strings.Join(conds, " AND "), nil
}

func (c rowChange) columnIndex(name string) int {
	for i, col := range c.table.Columns {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

func (c rowChange) literal(i int, v any) (string, error) {
	return encodeValue(c.table.Columns[i], v)
}

// encodeValue renders a decoded row value as a SQL literal.
func encodeValue(col mysql.ColumnInfo, v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	if strings.EqualFold(col.DataType, "timestamp") {
		if lit, ok := timestampLiteral(v); ok {
			return lit, nil
		}
	}

	v = normalize(col, v)

	val, err := sqltypes.InterfaceToValue(v)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", col.Name, err)
	}

	var b strings.Builder
	val.EncodeSQL(&b)
	return b.String(), nil
}

// timestampLiteral renders a TIMESTAMP as FROM_UNIXTIME so that replaying
// the statement stores the same instant whatever the session time_zone is.
// The stream decodes TIMESTAMP values as UTC strings. Zero dates fall
// through to a plain string literal.
func timestampLiteral(v any) (string, bool) {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		parsed, err := time.ParseInLocation(timestampLayout, x, time.UTC)
		if err != nil {
			return "", false
		}
		t = parsed
	default:
		return "", false
	}

	if micros := t.Nanosecond() / 1000; micros != 0 {
		return fmt.Sprintf("FROM_UNIXTIME(%d.%06d)", t.Unix(), micros), true
	}
	return fmt.Sprintf("FROM_UNIXTIME(%d)", t.Unix()), true
}

// normalize maps the binlog decoder's Go types onto the handful that
// sqltypes accepts. Integer columns arrive signed, so UNSIGNED ones are
// reinterpreted at their declared width.
func normalize(col mysql.ColumnInfo, v any) any {
	unsigned := col.Unsigned()

	switch n := v.(type) {
	case nil, string, []byte, int64, uint64, float64:
		if i, ok := n.(int64); ok && unsigned && i < 0 {
			return unsignedAt(col.DataType, i)
		}
		return n
	case int8:
		if unsigned {
			return uint64(uint8(n))
		}
		return int64(n)
	case int16:
		if unsigned {
			return uint64(uint16(n))
		}
		return int64(n)
	case int32:
		if unsigned {
			if strings.EqualFold(col.DataType, "mediumint") {
				return uint64(uint32(n) & 0xFFFFFF)
			}
			return uint64(uint32(n))
		}
		return int64(n)
	case int:
		return normalize(col, int64(n))
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint:
		return uint64(n)
	case float32:
		// Format at float32 precision so 1.1 doesn't become 1.100000023841858.
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case bool:
		if n {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return n.Format("2006-01-02 15:04:05.999999")
	case fmt.Stringer:
		// decimal.Decimal and friends
		return n.String()
	}

	return fmt.Sprint(v)
}

func unsignedAt(dataType string, i int64) uint64 {
	switch strings.ToLower(dataType) {
	case "tinyint":
		return uint64(uint8(i))
	case "smallint":
		return uint64(uint16(i))
	case "mediumint":
		return uint64(uint32(i) & 0xFFFFFF)
	case "int", "integer":
		return uint64(uint32(i))
	}
	return uint64(i)
}
