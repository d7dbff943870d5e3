// Package mysql implements the MySQL/MariaDB backend using
// go-sql-driver/mysql through database/sql.
package mysql

import (
	"fmt"
	"strings"

	"xlsxloader/internal/storage"
)

// uniquePrefix is the index prefix length used for UNIQUE keys on TEXT
// columns (191 utf8mb4 characters fit the 767-byte InnoDB limit).
const uniquePrefix = 191

// Dialect is the MySQL storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Kind() string { return "mysql" }

func (Dialect) QuoteIdent(id string) string { return storage.QuoteWith(id, "`", "`") }

func (d Dialect) QuoteTable(fqn string) string { return storage.QuoteFQN(fqn, d.QuoteIdent) }

func (Dialect) Placeholder(int) string { return "?" }

// binText pins new columns to a case- and accent-sensitive collation; the
// server default (utf8mb4_0900_ai_ci) folds both.
const binText = " CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"

// TextType uses TEXT for wide columns: many VARCHAR(4000) utf8mb4 columns
// exceed the 65535-byte row limit.
func (Dialect) TextType(width int) string {
	if width > 0 && width <= 255 {
		return fmt.Sprintf("VARCHAR(%d)", width) + binText
	}
	return "TEXT" + binText
}

func (d Dialect) UniqueClause(col string) string {
	return fmt.Sprintf("UNIQUE KEY (%s(%d))", d.QuoteIdent(col), uniquePrefix)
}

func (Dialect) TableExistsSQL(fqn string) (string, []any) {
	schema, table := storage.SplitFQN(fqn)
	if schema != "" {
		return "SELECT COUNT(*), MIN(table_name) FROM information_schema.tables WHERE UPPER(table_schema) = ? AND UPPER(table_name) = ?",
			[]any{schema, table}
	}
	return "SELECT COUNT(*), MIN(table_name) FROM information_schema.tables WHERE table_schema = DATABASE() AND UPPER(table_name) = ?",
		[]any{table}
}

// KeyEquals compares bytes, so tables created with the default collation
// match exactly too. Binary strings do not pad trailing spaces.
func (Dialect) KeyEquals(lhs, rhs string) string {
	return "CAST(" + lhs + " AS BINARY) = CAST(" + rhs + " AS BINARY)"
}

func (d Dialect) Savepoint(name string) string  { return "SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) RollbackTo(name string) string { return "ROLLBACK TO SAVEPOINT " + d.QuoteIdent(name) }
func (d Dialect) Release(name string) string    { return "RELEASE SAVEPOINT " + d.QuoteIdent(name) }

// MergeSQL renders INSERT ... ON DUPLICATE KEY UPDATE; it relies on the
// UNIQUE key of the key column.
func (d Dialect) MergeSQL(table string, columns []string, key string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("merge: no columns")
	}
	found := false
	for _, c := range columns {
		found = found || c == key
	}
	if !found {
		return "", fmt.Errorf("merge: key column %q not in columns", key)
	}

	rest := storage.NonKey(columns, key)
	if len(rest) == 0 {
		rest = []string{key}
	}
	sets := make([]string, len(rest))
	for i, c := range rest {
		q := d.QuoteIdent(c)
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", q, q)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		d.QuoteTable(table),
		strings.Join(storage.QuoteAll(d, columns), ", "),
		storage.Placeholders(d, 1, len(columns)),
		strings.Join(sets, ", "),
	), nil
}
