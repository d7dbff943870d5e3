// Package postgres implements the Postgres backend on a native pgx v5
// connection.
//
// The dialect uses double-quoted identifiers, "$n" binds, VARCHAR(n) wide
// text (TEXT when width is 0) and INSERT ... ON CONFLICT for merges.
package postgres

import (
	"fmt"
	"strconv"

	"xlsxloader/internal/storage"
)

// Dialect is the Postgres storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Kind() string { return "postgres" }

// QuoteIdent quotes a single identifier segment, e.g.:
//
//	QuoteIdent(`CITY`)       => `"CITY"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func (Dialect) QuoteIdent(id string) string { return storage.QuoteWith(id, `"`, `"`) }

// QuoteTable quotes a possibly schema-qualified name like "public.users" to
// `"public"."users"`.
func (d Dialect) QuoteTable(fqn string) string { return storage.QuoteFQN(fqn, d.QuoteIdent) }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Dialect) TextType(width int) string {
	if width <= 0 {
		return "TEXT"
	}
	return fmt.Sprintf("VARCHAR(%d)", width)
}

func (d Dialect) UniqueClause(col string) string {
	return fmt.Sprintf("UNIQUE (%s)", d.QuoteIdent(col))
}

// TableExistsSQL looks in information_schema, scoped to current_schema()
// unless fqn names a schema.
func (Dialect) TableExistsSQL(fqn string) (string, []any) {
	schema, table := storage.SplitFQN(fqn)
	if schema != "" {
		return "SELECT COUNT(*), MIN(table_name) FROM information_schema.tables WHERE UPPER(table_schema) = $1 AND UPPER(table_name) = $2",
			[]any{schema, table}
	}
	return "SELECT COUNT(*), MIN(table_name) FROM information_schema.tables WHERE table_schema = current_schema() AND UPPER(table_name) = $1",
		[]any{table}
}

func (Dialect) KeyEquals(lhs, rhs string) string { return lhs + " = " + rhs }

func (d Dialect) Savepoint(name string) string  { return "SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) Release(name string) string    { return "RELEASE SAVEPOINT " + d.QuoteIdent(name) }

// MergeSQL renders INSERT ... ON CONFLICT (key) DO UPDATE SET col = EXCLUDED.col.
func (d Dialect) MergeSQL(table string, columns []string, key string) (string, error) {
	return storage.OnConflictSQL(d, table, columns, key)
}
