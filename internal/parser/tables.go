package parser

import (
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

// TableRef names a table a DML statement writes to.
type TableRef struct {
	Database string // empty when unqualified
	Table    string
}

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// TargetTables returns the tables a DML statement may modify. For joins it
// returns every table in the FROM list, which is a superset of the tables
// actually written. It returns nil when the statement can't be parsed;
// callers treat nil as "unknown" rather than "none".
func TargetTables(text string) []TableRef {
	p, err := getParser()
	if err != nil {
		return nil
	}

	stmt, err := p.Parse(text)
	if err != nil {
		return nil
	}

	var refs []TableRef
	switch s := stmt.(type) {
	case *sqlparser.Insert:
		if s.Table != nil {
			if tn, ok := s.Table.Expr.(sqlparser.TableName); ok {
				refs = append(refs, tableRef(tn))
			}
		}
	case *sqlparser.Update:
		refs = collectTableExprs(refs, s.TableExprs)
	case *sqlparser.Delete:
		refs = collectTableExprs(refs, s.TableExprs)
	}

	return dedupe(refs)
}

func tableRef(tn sqlparser.TableName) TableRef {
	return TableRef{Database: tn.Qualifier.String(), Table: tn.Name.String()}
}

func collectTableExprs(refs []TableRef, exprs sqlparser.TableExprs) []TableRef {
	for _, expr := range exprs {
		refs = collectTableExpr(refs, expr)
	}
	return refs
}

func collectTableExpr(refs []TableRef, expr sqlparser.TableExpr) []TableRef {
	switch t := expr.(type) {
	case *sqlparser.AliasedTableExpr:
		if tn, ok := t.Expr.(sqlparser.TableName); ok {
			refs = append(refs, tableRef(tn))
		}
	case *sqlparser.JoinTableExpr:
		refs = collectTableExpr(refs, t.LeftExpr)
		refs = collectTableExpr(refs, t.RightExpr)
	}
	return refs
}

func dedupe(refs []TableRef) []TableRef {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[TableRef]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
