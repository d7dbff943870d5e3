package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 5432

// newDB is a test hook that points to db.NewPgDB by default.
// Tests may replace this variable to avoid real DB connections.
var newDB = db.NewPgDB

func init() {
	storage.Register("postgres", storage.Backend{Dialect: Dialect{}, Open: Open})
}

// Open connects with pgx and pings the server.
func Open(ctx context.Context, cfg storage.Config) (db.DB, error) {
	d, err := newDB(ctx, BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("pgx connect: %w", err)
	}
	if err := d.Ping(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	return d, nil
}

// BuildDSN returns cfg.DSN when set, otherwise a postgres:// URL built from
// the discrete parts with credentials escaped.
func BuildDSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Service,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}
