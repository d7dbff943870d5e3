// Package upsert writes sheet rows into a table keyed on one column, inside a
// single transaction with a savepoint around every row.
package upsert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zeebo/xxh3"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

// ErrKeyNotInHeader is returned when Batch.Key is not one of Batch.Columns.
var ErrKeyNotInHeader = errors.New("key column not in header")

// ErrEmptyKey marks a row with a blank key on an engine that stores '' as
// NULL; such a row could never be matched again and would be re-inserted on
// every run.
var ErrEmptyKey = errors.New("empty key cannot be matched on this backend")

const savepoint = "XLSX_ROW"

// Batch is one table's worth of rows. Rows are aligned to Columns.
type Batch struct {
	Table   string
	Columns []string
	Rows    [][]string
	Key     string
	// Lines optionally gives the sheet row number of each row for error
	// reports. Without it Rows[i] is reported as row i+2.
	Lines []int
}

func (b Batch) line(i int) int {
	if i < len(b.Lines) {
		return b.Lines[i]
	}
	return i + 2
}

// Options tune an Upserter.
type Options struct {
	Mode Mode
	// DryRun executes every statement and then rolls back.
	DryRun bool
	// OnRowError is called for each failed row after it was rolled back.
	OnRowError func(*RowError)
}

// Result counts what happened to each row.
type Result struct {
	Inserted  int
	Updated   int
	Unchanged int
	// Merged counts rows written by ModeMerge; drivers do not agree on
	// whether a merge inserted or updated.
	Merged int
	Failed int
	// DuplicateKeys counts rows whose key already appeared earlier in the
	// batch.
	DuplicateKeys int
	Failures      []*RowError
	Committed     bool
}

// Written is the number of rows that changed the table.
func (r *Result) Written() int { return r.Inserted + r.Updated + r.Merged }

// RowError describes one row that could not be written.
type RowError struct {
	Row int
	Key string
	// Stage is the statement that failed: lookup, insert, update or merge.
	// It is shape when the row width does not match the header and key when
	// the key cannot be matched.
	Stage  string
	Values []string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d key=%q %s: %v", e.Row, e.Key, e.Stage, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Upserter applies batches over one connection.
type Upserter struct {
	conn *storage.Conn
	opts Options
}

// New returns an Upserter. An empty Options.Mode means ModeCompare.
func New(conn *storage.Conn, opts Options) *Upserter {
	if opts.Mode == "" {
		opts.Mode = ModeCompare
	}
	return &Upserter{conn: conn, opts: opts}
}

// statements are rendered once per batch.
type statements struct {
	sel, upd, ins, merge string
}

func (u *Upserter) prepare(b Batch, keyIdx int) (statements, error) {
	d := u.conn.Dialect
	table := d.QuoteTable(b.Table)
	cols := storage.QuoteAll(d, b.Columns)
	qk := d.QuoteIdent(b.Columns[keyIdx])
	n := len(cols)

	var st statements
	st.sel = fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(cols, ", "), table, d.KeyEquals(qk, d.Placeholder(1)))

	sets := make([]string, n)
	for i, c := range cols {
		sets[i] = c + " = " + d.Placeholder(i+1)
	}
	st.upd = fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), d.KeyEquals(qk, d.Placeholder(n+1)))

	st.ins = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), storage.Placeholders(d, 1, n))

	if u.opts.Mode == ModeMerge {
		m, err := d.MergeSQL(b.Table, b.Columns, b.Columns[keyIdx])
		if err != nil {
			return st, err
		}
		st.merge = m
	}
	return st, nil
}

// Run writes every row of b in one transaction and commits once at the end.
// A row whose statement fails is rolled back to its savepoint and recorded;
// the batch continues. Errors that leave the transaction unusable abort the
// batch: it is rolled back and the error returned with the partial Result.
func (u *Upserter) Run(ctx context.Context, b Batch) (*Result, error) {
	res := &Result{}
	keyIdx := indexOf(b.Columns, b.Key)
	if keyIdx < 0 {
		return res, fmt.Errorf("%w: %q not in %v", ErrKeyNotInHeader, b.Key, b.Columns)
	}
	st, err := u.prepare(b, keyIdx)
	if err != nil {
		return res, fmt.Errorf("prepare: %w", err)
	}

	tx, err := u.conn.DB.BeginTx(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	abort := func(cause error) (*Result, error) {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Printf("upsert: rollback failed err=%v", rbErr)
		}
		return res, cause
	}

	emptyIsNull := storage.EmptyStringIsNull(u.conn.Dialect)
	seen := make(map[uint64]struct{}, len(b.Rows))
	for i, row := range b.Rows {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		rowNum := b.line(i)
		if len(row) != len(b.Columns) {
			re := &RowError{Row: rowNum, Stage: "shape", Values: row, Err: fmt.Errorf("row has %d values, want %d", len(row), len(b.Columns))}
			u.fail(res, re)
			continue
		}
		key := row[keyIdx]
		if key == "" && emptyIsNull {
			u.fail(res, &RowError{Row: rowNum, Stage: "key", Values: row, Err: ErrEmptyKey})
			continue
		}

		h := xxh3.HashString(key)
		if _, dup := seen[h]; dup {
			res.DuplicateKeys++
			log.Printf("upsert: duplicate key row=%d key=%q", rowNum, key)
		}
		seen[h] = struct{}{}

		if err := u.exec(ctx, tx, u.conn.Dialect.Savepoint(savepoint)); err != nil {
			return abort(fmt.Errorf("savepoint row %d: %w", rowNum, err))
		}

		op, stage, werr := u.writeRow(ctx, tx, st, row, key)
		if werr != nil {
			if err := u.exec(ctx, tx, u.conn.Dialect.RollbackTo(savepoint)); err != nil {
				return abort(fmt.Errorf("rollback to savepoint row %d: %w (row error: %v)", rowNum, err, werr))
			}
			u.fail(res, &RowError{Row: rowNum, Key: key, Stage: stage, Values: row, Err: werr})
			continue
		}
		if err := u.exec(ctx, tx, u.conn.Dialect.Release(savepoint)); err != nil {
			return abort(fmt.Errorf("release savepoint row %d: %w", rowNum, err))
		}

		switch op {
		case opInsert:
			res.Inserted++
		case opUpdate:
			res.Updated++
		case opSkip:
			res.Unchanged++
		case opMerge:
			res.Merged++
		}
	}

	if u.opts.DryRun {
		if err := tx.Rollback(ctx); err != nil {
			return res, fmt.Errorf("dry-run rollback: %w", err)
		}
		log.Printf("upsert: dry run table=%s rolled back", b.Table)
		return res, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Committed = true
	return res, nil
}

func (u *Upserter) fail(res *Result, re *RowError) {
	res.Failed++
	res.Failures = append(res.Failures, re)
	log.Printf("upsert: %v", re)
	if u.opts.OnRowError != nil {
		u.opts.OnRowError(re)
	}
}

// exec runs a bracket statement; "" is a no-op for engines without one.
func (u *Upserter) exec(ctx context.Context, tx db.Tx, stmt string) error {
	if stmt == "" {
		return nil
	}
	_, err := tx.Exec(ctx, stmt)
	return err
}

type op int

const (
	opInsert op = iota
	opUpdate
	opSkip
	opMerge
)

// writeRow runs the statements for one row and names the one that failed.
func (u *Upserter) writeRow(ctx context.Context, tx db.Tx, st statements, row []string, key string) (op, string, error) {
	args := toArgs(row)

	switch u.opts.Mode {
	case ModeInsert:
		if _, err := tx.Exec(ctx, st.ins, args...); err != nil {
			return 0, "insert", err
		}
		return opInsert, "", nil
	case ModeMerge:
		if _, err := tx.Exec(ctx, st.merge, args...); err != nil {
			return 0, "merge", err
		}
		return opMerge, "", nil
	}

	existing, found, err := lookup(ctx, tx, st.sel, key, len(row))
	if err != nil {
		return 0, "lookup", err
	}
	if !found {
		if _, err := tx.Exec(ctx, st.ins, args...); err != nil {
			return 0, "insert", err
		}
		return opInsert, "", nil
	}
	if u.opts.Mode == ModeCompare && equalRow(existing, row) {
		return opSkip, "", nil
	}
	if _, err := tx.Exec(ctx, st.upd, append(args, key)...); err != nil {
		return 0, "update", err
	}
	return opUpdate, "", nil
}

// lookup returns the first stored row for key as text.
func lookup(ctx context.Context, tx db.Tx, q, key string, n int) ([]string, bool, error) {
	rows, err := tx.Query(ctx, q, key)
	if err != nil {
		return nil, false, err
	}
	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		return nil, false, err
	}
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		_ = rows.Close()
		return nil, false, err
	}
	if err := rows.Close(); err != nil {
		return nil, false, err
	}
	out := make([]string, n)
	for i, v := range vals {
		out[i] = text(v)
	}
	return out, true, nil
}

// text renders a scanned value the way it would have been bound. NULL is
// "" because some engines store empty strings as NULL.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toArgs(row []string) []any {
	args := make([]any, len(row), len(row)+1)
	for i, v := range row {
		args[i] = v
	}
	return args
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
