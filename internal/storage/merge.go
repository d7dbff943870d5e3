package storage

import (
	"fmt"
	"strings"
)

// OnConflictSQL renders the INSERT ... ON CONFLICT form shared by Postgres and
// SQLite. The key column needs a UNIQUE constraint for the conflict target.
func OnConflictSQL(d Dialect, table string, columns []string, key string) (string, error) {
	if err := checkMergeArgs(columns, key); err != nil {
		return "", err
	}
	action := "DO NOTHING"
	if rest := NonKey(columns, key); len(rest) > 0 {
		action = "DO UPDATE SET " + strings.Join(excludedAssignments(d, rest), ", ")
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		d.QuoteTable(table),
		strings.Join(QuoteAll(d, columns), ", "),
		Placeholders(d, 1, len(columns)),
		d.QuoteIdent(key),
		action,
	), nil
}

// excludedAssignments generates "col = EXCLUDED.col" for each column.
func excludedAssignments(d Dialect, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		q := d.QuoteIdent(c)
		out = append(out, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	return out
}

// MergeUsingSQL renders the MERGE ... USING form shared by Oracle and SQL
// Server. source is the row-source expression producing aliased bind
// columns, e.g. "SELECT :1 AS \"A\" FROM dual".
func MergeUsingSQL(d Dialect, table string, columns []string, key, source, terminator string) (string, error) {
	if err := checkMergeArgs(columns, key); err != nil {
		return "", err
	}
	qk := d.QuoteIdent(key)

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s T USING (%s) S ON (%s)", d.QuoteTable(table), source, d.KeyEquals("T."+qk, "S."+qk))

	// The ON column cannot be updated (Oracle ORA-38104); it is equal anyway.
	if rest := NonKey(columns, key); len(rest) > 0 {
		sets := make([]string, 0, len(rest))
		for _, c := range rest {
			q := d.QuoteIdent(c)
			sets = append(sets, fmt.Sprintf("T.%s = S.%s", q, q))
		}
		sb.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		sb.WriteString(strings.Join(sets, ", "))
	}

	qcols := QuoteAll(d, columns)
	vals := make([]string, len(qcols))
	for i, q := range qcols {
		vals[i] = "S." + q
	}
	fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)%s",
		strings.Join(qcols, ", "), strings.Join(vals, ", "), terminator)
	return sb.String(), nil
}

// SelectAliases renders "<p1> AS c1, <p2> AS c2, ..." for a MERGE source row.
func SelectAliases(d Dialect, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s AS %s", d.Placeholder(i+1), d.QuoteIdent(c))
	}
	return strings.Join(parts, ", ")
}

func checkMergeArgs(columns []string, key string) error {
	if len(columns) == 0 {
		return fmt.Errorf("merge: no columns")
	}
	for _, c := range columns {
		if c == key {
			return nil
		}
	}
	return fmt.Errorf("merge: key column %q not in columns", key)
}
