// Package oracle implements the Oracle backend using the pure-Go go-ora
// driver through database/sql.
//
// The dialect:
//   - Uses double-quoted identifiers; names are stored upper-case.
//   - Binds positionally with ":n".
//   - Uses VARCHAR2(n) wide text (4000 by default, the classic limit).
//   - Checks existence in USER_TABLES, or ALL_TABLES for OWNER.TABLE names.
//   - Merges with MERGE ... USING (SELECT ... FROM dual).
package oracle

import (
	"fmt"
	"strconv"

	"xlsxloader/internal/storage"
)

// Dialect is the Oracle storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Kind() string { return "oracle" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteWith(id, `"`, `"`) }

func (d Dialect) QuoteTable(fqn string) string { return storage.QuoteFQN(fqn, d.QuoteIdent) }

func (Dialect) Placeholder(n int) string { return ":" + strconv.Itoa(n) }

func (Dialect) TextType(width int) string {
	if width <= 0 {
		width = 4000
	}
	return fmt.Sprintf("VARCHAR2(%d)", width)
}

func (d Dialect) UniqueClause(col string) string {
	return fmt.Sprintf("UNIQUE (%s)", d.QuoteIdent(col))
}

func (Dialect) TableExistsSQL(fqn string) (string, []any) {
	schema, table := storage.SplitFQN(fqn)
	if schema != "" {
		return "SELECT COUNT(*), MIN(table_name) FROM all_tables WHERE UPPER(owner) = :1 AND UPPER(table_name) = :2", []any{schema, table}
	}
	return "SELECT COUNT(*), MIN(table_name) FROM user_tables WHERE UPPER(table_name) = :1", []any{table}
}

func (Dialect) KeyEquals(lhs, rhs string) string { return lhs + " = " + rhs }

// EmptyStringIsNull is true: Oracle stores '' as NULL.
func (Dialect) EmptyStringIsNull() bool { return true }

// Oracle rolls back only the failing statement, but the savepoint keeps row
// semantics identical across backends. There is no RELEASE SAVEPOINT.
func (Dialect) Savepoint(name string) string  { return "SAVEPOINT " + name }
func (Dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (Dialect) Release(string) string         { return "" }

func (d Dialect) MergeSQL(table string, columns []string, key string) (string, error) {
	src := "SELECT " + storage.SelectAliases(d, columns) + " FROM dual"
	return storage.MergeUsingSQL(d, table, columns, key, src, "")
}
