package ddl

// ColumnDef describes a single column in a table definition. It intentionally
// uses simple, database-agnostic fields.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., VARCHAR2(4000), TEXT, NVARCHAR(4000))
//   - Nullable: whether NULL is allowed
//   - Unique: whether a UNIQUE constraint is rendered for the column
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Unique   bool
}

// TableDef holds the table name (optionally schema-qualified, e.g.
// "schema.table") and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect is the subset of a SQL dialect the renderer needs.
type Dialect interface {
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent(name string) string
	// QuoteTable quotes a possibly schema-qualified table name.
	QuoteTable(fqn string) string
	// TextType returns the wide-text column type for the given width.
	TextType(width int) string
	// UniqueClause renders the table-level UNIQUE constraint for a column.
	UniqueClause(column string) string
}

// TextTable builds a TableDef with one nullable wide-text column per name.
// When uniqueKey is non-empty that column also gets a UNIQUE constraint.
func TextTable(d Dialect, fqn string, columns []string, width int, uniqueKey string) TableDef {
	td := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(columns))}
	for _, c := range columns {
		td.Columns = append(td.Columns, ColumnDef{
			Name:     c,
			SQLType:  d.TextType(width),
			Nullable: true,
			Unique:   uniqueKey != "" && c == uniqueKey,
		})
	}
	return td
}
