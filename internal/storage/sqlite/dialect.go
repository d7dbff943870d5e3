// Package sqlite implements the SQLite backend using modernc.org/sqlite
// through database/sql.
//
// The dialect:
//   - Uses double-quoted identifiers: "table", "col".
//   - Binds with "?".
//   - Stores every column as TEXT (SQLite ignores declared widths).
//   - Merges with INSERT ... ON CONFLICT, which needs a UNIQUE key column.
package sqlite

import (
	"fmt"
	"strings"

	"xlsxloader/internal/storage"
)

// Dialect is the SQLite storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Kind() string { return "sqlite" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteWith(id, `"`, `"`) }

func (d Dialect) QuoteTable(fqn string) string { return storage.QuoteFQN(fqn, d.QuoteIdent) }

func (Dialect) Placeholder(int) string { return "?" }

// TextType ignores width: SQLite does not enforce VARCHAR lengths.
func (Dialect) TextType(int) string { return "TEXT" }

func (d Dialect) UniqueClause(col string) string {
	return fmt.Sprintf("UNIQUE (%s)", d.QuoteIdent(col))
}

// TableExistsSQL checks sqlite_master of the main database, or of the
// attached schema when fqn is qualified.
func (d Dialect) TableExistsSQL(fqn string) (string, []any) {
	schema, table := storage.SplitFQN(fqn)
	master := "sqlite_master"
	if schema != "" {
		master = d.QuoteIdent(strings.ToLower(schema)) + ".sqlite_master"
	}
	return "SELECT COUNT(*), MIN(name) FROM " + master + " WHERE type = 'table' AND UPPER(name) = ?", []any{table}
}

func (Dialect) KeyEquals(lhs, rhs string) string { return lhs + " = " + rhs }

func (d Dialect) Savepoint(name string) string  { return "SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) Release(name string) string    { return "RELEASE SAVEPOINT " + d.QuoteIdent(name) }

// MergeSQL renders INSERT ... ON CONFLICT (key) DO UPDATE.
func (d Dialect) MergeSQL(table string, columns []string, key string) (string, error) {
	return storage.OnConflictSQL(d, table, columns, key)
}
