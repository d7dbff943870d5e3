package storage

import (
	"strings"

	"xlsxloader/internal/ddl"
)

// Dialect renders backend-specific SQL. Every identifier passed in is
// unquoted; every value is bound through Placeholder, never interpolated.
type Dialect interface {
	ddl.Dialect

	// Kind is the registry key, e.g. "oracle".
	Kind() string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// TableExistsSQL returns a catalog query yielding one row: the COUNT(*)
	// of tables whose upper-cased name matches fqn and the MIN of their
	// catalog spelling (NULL when none), plus its bind arguments.
	TableExistsSQL(fqn string) (string, []any)

	// KeyEquals renders an exact text comparison of two SQL expressions,
	// insensitive to neither case, accents nor trailing spaces, whatever the
	// column collation.
	KeyEquals(lhs, rhs string) string

	// Savepoint, RollbackTo and Release return the statements that bracket a
	// single row. Release may return "" when the engine has no release.
	Savepoint(name string) string
	RollbackTo(name string) string
	Release(name string) string

	// MergeSQL returns one statement that inserts or updates a row keyed on
	// key. Arguments are bound in columns order.
	MergeSQL(table string, columns []string, key string) (string, error)
}

// EmptyStringIsNull reports whether d's engine stores '' as NULL, so that no
// equality predicate can match an empty key.
func EmptyStringIsNull(d Dialect) bool {
	e, ok := d.(interface{ EmptyStringIsNull() bool })
	return ok && e.EmptyStringIsNull()
}

// QuoteWith wraps id in open/close, doubling any embedded close character.
func QuoteWith(id string, open, close string) string {
	return open + strings.ReplaceAll(id, close, close+close) + close
}

// QuoteFQN quotes each non-empty dotted segment of fqn with quote.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}

// SplitFQN splits "schema.table" into its parts. schema is "" when fqn is not
// qualified. Both parts are upper-cased for catalog comparison.
func SplitFQN(fqn string) (schema, table string) {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return strings.ToUpper(strings.TrimSpace(fqn[:i])), strings.ToUpper(strings.TrimSpace(fqn[i+1:]))
	}
	return "", strings.ToUpper(fqn)
}

// Placeholders renders n bind markers joined by ", ", starting at from.
func Placeholders(d Dialect, from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.Placeholder(from + i)
	}
	return strings.Join(ps, ", ")
}

// QuoteAll maps a list of column names to their quoted forms.
func QuoteAll(d Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}

// NonKey returns cols without key, preserving order.
func NonKey(cols []string, key string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != key {
			out = append(out, c)
		}
	}
	return out
}
