package rollback

import (
	"context"
	"fmt"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/nethalo/dbexec/internal/mysql"
)

// columnCache resolves the layout of each table seen in the stream once.
type columnCache struct {
	schema mysql.Queryer
	tables map[string]*mysql.TableColumns
}

func newColumnCache(schema mysql.Queryer) *columnCache {
	return &columnCache{schema: schema, tables: make(map[string]*mysql.TableColumns)}
}

// lookup prefers information_schema, which knows the declared types. Without
// a schema source it falls back to the optional metadata MySQL writes into
// table map events when binlog_row_metadata=FULL.
func (c *columnCache) lookup(ctx context.Context, tm *replication.TableMapEvent) (*mysql.TableColumns, error) {
	db, table := string(tm.Schema), string(tm.Table)
	key := db + "." + table
	if tc, ok := c.tables[key]; ok {
		return tc, nil
	}

	var (
		tc  *mysql.TableColumns
		err error
	)
	if c.schema != nil {
		tc, err = mysql.GetTableColumns(ctx, c.schema, db, table)
	} else {
		tc, err = fromTableMap(tm)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving columns of %s: %w", key, err)
	}

	c.tables[key] = tc
	return tc, nil
}

func fromTableMap(tm *replication.TableMapEvent) (*mysql.TableColumns, error) {
	names := tm.ColumnNameString()
	if len(names) == 0 {
		return nil, fmt.Errorf("binlog carries no column names (binlog_row_metadata is not FULL)")
	}

	unsigned := tm.UnsignedMap()
	tc := &mysql.TableColumns{Database: string(tm.Schema), Table: string(tm.Table)}
	for i, name := range names {
		col := mysql.ColumnInfo{Name: name, Position: i + 1, Nullable: true}
		if i < len(tm.ColumnType) {
			col.DataType = dataType(tm.ColumnType[i])
		}
		if unsigned[i] {
			col.ColumnType = col.DataType + " unsigned"
		}
		tc.Columns = append(tc.Columns, col)
	}
	for _, idx := range tm.PrimaryKey {
		if int(idx) < len(names) {
			tc.PrimaryKey = append(tc.PrimaryKey, names[idx])
		}
	}
	return tc, nil
}

// dataType names the column types whose rendering depends on it: integers
// for the unsigned correction and TIMESTAMP for its time zone.
func dataType(t byte) string {
	switch t {
	case gomysql.MYSQL_TYPE_TIMESTAMP, gomysql.MYSQL_TYPE_TIMESTAMP2:
		return "timestamp"
	case gomysql.MYSQL_TYPE_TINY:
		return "tinyint"
	case gomysql.MYSQL_TYPE_SHORT:
		return "smallint"
	case gomysql.MYSQL_TYPE_INT24:
		return "mediumint"
	case gomysql.MYSQL_TYPE_LONG:
		return "int"
	case gomysql.MYSQL_TYPE_LONGLONG:
		return "bigint"
	}
	return ""
}
