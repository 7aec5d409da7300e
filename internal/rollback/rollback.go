// Package rollback turns the row events a statement wrote to the binary log
// into statements that undo it.
package rollback

import (
	"context"
	"strings"

	"github.com/nethalo/dbexec/internal/mysql"
	"github.com/nethalo/dbexec/internal/parser"
)

// Request bounds the events to reverse.
type Request struct {
	Conn         mysql.ConnectionConfig
	Start        mysql.Position // read on the executing session before the statement
	End          mysql.Position // read on the same session after commit
	AffectedRows int64
	Flavor       string // "mysql" or "mariadb"; empty means mysql
	// Tables scopes which row events belong to the statement. Nil means the
	// target tables are unknown and every table is accepted.
	Tables []parser.TableRef
	// Schema answers column metadata lookups when the binlog carries no
	// column names (binlog_row_metadata=MINIMAL).
	Schema mysql.Queryer
}

// Generator produces reverse statements, most recent change first.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) ([]string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) ([]string, error) {
	return f(ctx, req)
}

// scope decides whether an event's table belongs to the statement.
type scope struct {
	defaultDB string
	tables    map[parser.TableRef]bool
}

func newScope(defaultDB string, tables []parser.TableRef) scope {
	s := scope{defaultDB: defaultDB}
	if len(tables) == 0 {
		return s
	}
	s.tables = make(map[parser.TableRef]bool, len(tables))
	for _, t := range tables {
		db := t.Database
		if db == "" {
			db = defaultDB
		}
		s.tables[parser.TableRef{Database: strings.ToLower(db), Table: strings.ToLower(t.Table)}] = true
	}
	return s
}

func (s scope) includes(database, table string) bool {
	if s.tables == nil {
		return !strings.EqualFold(database, "mysql")
	}
	return s.tables[parser.TableRef{Database: strings.ToLower(database), Table: strings.ToLower(table)}]
}
