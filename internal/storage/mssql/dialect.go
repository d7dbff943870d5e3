// Package mssql implements the Microsoft SQL Server backend using
// go-mssqldb through database/sql.
//
// The dialect:
//   - Uses SQL Server-style identifier quoting: [schema].[table], [col].
//   - Binds with "@pN".
//   - Uses NVARCHAR(n) wide text, NVARCHAR(MAX) above 4000, with a binary
//     collation.
//   - Brackets rows with SAVE TRANSACTION / ROLLBACK TRANSACTION.
package mssql

import (
	"fmt"
	"strconv"

	"xlsxloader/internal/storage"
)

// Dialect is the SQL Server storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Kind() string { return "mssql" }

// QuoteIdent quotes with [brackets], escaping ].
func (Dialect) QuoteIdent(id string) string { return storage.QuoteWith(id, "[", "]") }

// QuoteTable quotes "dbo.events" as "[dbo].[events]".
func (d Dialect) QuoteTable(fqn string) string { return storage.QuoteFQN(fqn, d.QuoteIdent) }

func (Dialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

const binCollation = "Latin1_General_BIN2"

func (Dialect) TextType(width int) string {
	if width <= 0 || width > 4000 {
		return "NVARCHAR(MAX) COLLATE " + binCollation
	}
	return fmt.Sprintf("NVARCHAR(%d) COLLATE %s", width, binCollation)
}

func (d Dialect) UniqueClause(col string) string {
	return fmt.Sprintf("UNIQUE (%s)", d.QuoteIdent(col))
}

func (Dialect) TableExistsSQL(fqn string) (string, []any) {
	schema, table := storage.SplitFQN(fqn)
	const base = "SELECT COUNT(*), MIN(TABLE_NAME) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'"
	if schema != "" {
		return base + " AND UPPER(TABLE_SCHEMA) = @p1 AND UPPER(TABLE_NAME) = @p2", []any{schema, table}
	}
	return base + " AND TABLE_SCHEMA = SCHEMA_NAME() AND UPPER(TABLE_NAME) = @p1", []any{table}
}

// KeyEquals forces a binary collation and compares DATALENGTH, since "="
// ignores trailing spaces. rhs is evaluated twice; named @pN binds allow it.
func (Dialect) KeyEquals(lhs, rhs string) string {
	return fmt.Sprintf("%s COLLATE %s = %s AND DATALENGTH(%s) = DATALENGTH(%s)", lhs, binCollation, rhs, lhs, rhs)
}

// T-SQL savepoints have no release; they end with the transaction.
func (Dialect) Savepoint(name string) string  { return "SAVE TRANSACTION " + name }
func (Dialect) RollbackTo(name string) string { return "ROLLBACK TRANSACTION " + name }
func (Dialect) Release(string) string         { return "" }

// MergeSQL renders a T-SQL MERGE terminated with the mandatory semicolon.
func (d Dialect) MergeSQL(table string, columns []string, key string) (string, error) {
	src := "SELECT " + storage.SelectAliases(d, columns)
	return storage.MergeUsingSQL(d, table, columns, key, src, ";")
}
