// Package db provides backend-neutral connection and transaction interfaces
// plus two adapters: a native pgx adapter for Postgres and a portable
// database/sql adapter for every other engine.
package db

import "context"

// DB is a single open connection capable of DDL, catalog lookups and
// starting the batch transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) error
	QueryRow(ctx context.Context, sql string, args ...any) Row
	BeginTx(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the batch transaction. Exec reports rows affected.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row is the result of a single-row query.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
