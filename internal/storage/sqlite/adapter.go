package sqlite

import (
	"context"
	"fmt"
	"strings"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"

	_ "modernc.org/sqlite"
)

// newDB is a test hook that points to db.NewSQLDB by default.
var newDB = db.NewSQLDB

func init() {
	storage.Register("sqlite", storage.Backend{Dialect: Dialect{}, Open: Open})
}

// Open opens the database file named by cfg.DSN, or cfg.Service when no DSN
// is given. ":memory:" is accepted.
func Open(ctx context.Context, cfg storage.Config) (db.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	d, err := newDB(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return d, nil
}

// BuildDSN returns the DSN for cfg.
func BuildDSN(cfg storage.Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if p := strings.TrimSpace(cfg.Service); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("sqlite: DSN or service (file path) must not be empty")
}
