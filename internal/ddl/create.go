// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it using a dialect's quoting and types.
//
// The statement is a plain CREATE TABLE without IF NOT EXISTS: the schema
// reconciler decides whether to create, and a failed CREATE is reported as
// such rather than masked.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty; it is quoted with d.QuoteTable.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <quoted name> <SQLType> [NOT NULL]
//
//   - Columns with Unique == true are rendered as separate UNIQUE clauses at
//     the end of the column list, in column order.
//
//   - No trailing semicolon: Oracle rejects one in a single statement.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var uniques []string

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.Unique {
			uniques = append(uniques, d.UniqueClause(name))
		}
	}
	cols = append(cols, uniques...)

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		d.QuoteTable(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}
