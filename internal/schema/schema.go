// Package schema makes sure the target table exists before rows are written.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"xlsxloader/internal/ddl"
	"xlsxloader/internal/storage"
)

// DefaultTextWidth is the wide-text column width used when none is set.
const DefaultTextWidth = 4000

// QueryError reports a failed catalog lookup. The table is then treated as
// absent.
type QueryError struct {
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("schema: exists %s: %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CreateError reports a failed CREATE TABLE.
type CreateError struct {
	Table string
	SQL   string
	Err   error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("schema: create %s: %v", e.Table, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Reconciler checks for and creates tables on one connection.
type Reconciler struct {
	Conn *storage.Conn
	// TextWidth is passed to the dialect's TextType.
	TextWidth int
	// UniqueKey, when set, adds a UNIQUE constraint on that column.
	UniqueKey string
}

// New returns a Reconciler with the default text width.
func New(conn *storage.Conn) *Reconciler {
	return &Reconciler{Conn: conn, TextWidth: DefaultTextWidth}
}

// Exists reports whether table is present. On a catalog error it returns
// false together with a *QueryError.
//
// The catalog match ignores case but statements quote the upper-cased name,
// so a table found under another spelling is logged as a warning.
func (r *Reconciler) Exists(ctx context.Context, table string) (bool, error) {
	q, args := r.Conn.Dialect.TableExistsSQL(table)
	var n int64
	var name sql.NullString
	if err := r.Conn.DB.QueryRow(ctx, q, args...).Scan(&n, &name); err != nil {
		return false, &QueryError{Table: table, Err: err}
	}
	if n > 0 && name.Valid {
		if _, want := storage.SplitFQN(table); name.String != want {
			log.Printf("schema: warning table=%s is spelled %q in the catalog; quoted statements may not find it", table, name.String)
		}
	}
	return n > 0, nil
}

// CreateSQL renders the CREATE TABLE statement for table without running it.
func (r *Reconciler) CreateSQL(table string, columns []string) (string, error) {
	def := ddl.TextTable(r.Conn.Dialect, table, columns, r.TextWidth, r.UniqueKey)
	stmt, err := ddl.BuildCreateTableSQL(r.Conn.Dialect, def)
	if err != nil {
		return "", &CreateError{Table: table, Err: err}
	}
	return stmt, nil
}

// CreateTable creates table with one nullable wide-text column per name and
// commits.
func (r *Reconciler) CreateTable(ctx context.Context, table string, columns []string) error {
	stmt, err := r.CreateSQL(table, columns)
	if err != nil {
		return err
	}

	tx, err := r.Conn.DB.BeginTx(ctx)
	if err != nil {
		return &CreateError{Table: table, SQL: stmt, Err: err}
	}
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return &CreateError{Table: table, SQL: stmt, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &CreateError{Table: table, SQL: stmt, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// Ensure creates table unless it already exists. A failed lookup is treated
// as "absent" and returned even when the CREATE then succeeds; if the CREATE
// fails too, both errors are returned joined.
func (r *Reconciler) Ensure(ctx context.Context, table string, columns []string) (created bool, err error) {
	exists, qerr := r.Exists(ctx, table)
	if qerr != nil {
		log.Printf("schema: %v (treating table as absent)", qerr)
	}
	if exists {
		log.Printf("schema: table=%s exists", table)
		return false, nil
	}

	if cerr := r.CreateTable(ctx, table, columns); cerr != nil {
		log.Printf("schema: %v", cerr)
		return false, errors.Join(qerr, cerr)
	}
	log.Printf("schema: table=%s created columns=%d", table, len(columns))
	return true, qerr
}
