package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muir/sqltoken"
)

// ErrMalformed is returned for input that does not hold exactly one statement.
var ErrMalformed = errors.New("malformed statement")

// Category is the coarse statement class that decides the execution path.
type Category string

const (
	DDL   Category = "DDL"
	DML   Category = "DML"
	Use   Category = "USE"
	Other Category = "OTHER"
)

// DDLKind separates ALTER, which may go through the migration tool, from
// DDL that always executes directly.
type DDLKind string

const (
	DDLNone   DDLKind = ""
	DDLDirect DDLKind = "direct"
	DDLAlter  DDLKind = "alter"
)

var keywordCategories = map[string]struct {
	category Category
	kind     DDLKind
}{
	"CREATE":   {DDL, DDLDirect},
	"DROP":     {DDL, DDLDirect},
	"RENAME":   {DDL, DDLDirect},
	"TRUNCATE": {DDL, DDLDirect},
	"ALTER":    {DDL, DDLAlter},
	"INSERT":   {DML, DDLNone},
	"UPDATE":   {DML, DDLNone},
	"DELETE":   {DML, DDLNone},
	"REPLACE":  {DML, DDLNone},
	"USE":      {Use, DDLNone},
}

// Statement is a classified, comment-stripped SQL statement.
type Statement struct {
	Text     string   // statement without leading comments or trailing delimiter
	Comment  string   // leading comments that were removed, newline-joined
	Keyword  string   // upper-cased leading keyword, empty if it is not a word
	Category Category
	DDLKind  DDLKind
}

// IsAlter reports whether the statement is an ALTER.
func (s *Statement) IsAlter() bool {
	return s.Category == DDL && s.DDLKind == DDLAlter
}

// Classify strips leading comments from sql and classifies the statement by
// its leading keyword. Only the keyword is inspected; the statement body is
// not validated. Input holding no statement, or more than one, is rejected
// with ErrMalformed.
func Classify(sql string) (*Statement, error) {
	tokens := sqltoken.TokenizeMySQL(sql)

	var comments []string
	start := 0
leading:
	for ; start < len(tokens); start++ {
		switch t := tokens[start]; {
		case executable(t):
			break leading
		case t.Type == sqltoken.Comment:
			comments = append(comments, strings.TrimSpace(t.Text))
		case t.Type == sqltoken.Whitespace:
		default:
			break leading
		}
	}

	var body sqltoken.Tokens
	for _, cmd := range split(tokens[start:]) {
		if !meaningful(cmd) {
			continue
		}
		if body != nil {
			return nil, fmt.Errorf("%w: more than one statement", ErrMalformed)
		}
		body = trimTrailing(cmd)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: empty statement", ErrMalformed)
	}

	stmt := &Statement{
		Text:     strings.TrimSpace(body.String()),
		Comment:  strings.Join(comments, "\n"),
		Category: Other,
	}

	if body[0].Type == sqltoken.Word {
		stmt.Keyword = strings.ToUpper(body[0].Text)
		if c, ok := keywordCategories[stmt.Keyword]; ok {
			stmt.Category = c.category
			stmt.DDLKind = c.kind
		}
	}

	return stmt, nil
}

// executable reports whether t is a versioned comment such as /*!40101 ... */
// that MySQL or MariaDB runs as part of the statement.
func executable(t sqltoken.Token) bool {
	return t.Type == sqltoken.Comment && (strings.HasPrefix(t.Text, "/*!") || strings.HasPrefix(t.Text, "/*M!"))
}

// split breaks ts at each delimiter, keeping the original text of every part.
func split(ts sqltoken.Tokens) []sqltoken.Tokens {
	var parts []sqltoken.Tokens
	start := 0
	for i, t := range ts {
		if t.Type == sqltoken.Semicolon {
			parts = append(parts, ts[start:i])
			start = i + 1
		}
	}
	if start < len(ts) {
		parts = append(parts, ts[start:])
	}
	return parts
}

func meaningful(ts sqltoken.Tokens) bool {
	for _, t := range ts {
		switch {
		case executable(t):
			return true
		case t.Type == sqltoken.Comment, t.Type == sqltoken.Whitespace:
		case strings.TrimSpace(t.Text) == ";", strings.TrimSpace(t.Text) == "":
		default:
			return true
		}
	}
	return false
}

// trimTrailing drops delimiters, whitespace and plain comments after the last
// meaningful token, and any leading whitespace or plain comments.
func trimTrailing(ts sqltoken.Tokens) sqltoken.Tokens {
	for len(ts) > 0 && ignorable(ts[0]) {
		ts = ts[1:]
	}
	for len(ts) > 0 && ignorable(ts[len(ts)-1]) {
		ts = ts[:len(ts)-1]
	}
	return ts
}

func ignorable(t sqltoken.Token) bool {
	if executable(t) {
		return false
	}
	return t.Type == sqltoken.Comment || t.Type == sqltoken.Whitespace || strings.TrimSpace(t.Text) == ";"
}
