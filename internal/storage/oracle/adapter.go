package oracle

import (
	"context"
	"fmt"

	go_ora "github.com/sijms/go-ora/v2"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

// DefaultPort is the listener port used when storage.Config.Port is zero.
const DefaultPort = 1521

// newDB is a test hook that points to db.NewSQLDB by default.
var newDB = db.NewSQLDB

func init() {
	storage.Register("oracle", storage.Backend{Dialect: Dialect{}, Open: Open})
}

// Open opens and pings a single Oracle session.
func Open(ctx context.Context, cfg storage.Config) (db.DB, error) {
	d, err := newDB(ctx, "oracle", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	return d, nil
}

// BuildDSN returns cfg.DSN when set, otherwise an oracle:// URL for
// host:port/service built by go-ora.
func BuildDSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return go_ora.BuildUrl(cfg.Host, port, cfg.Service, cfg.User, cfg.Password, nil)
}
