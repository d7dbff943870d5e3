package mssql

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 1433

// newDB is a test hook that points to db.NewSQLDB by default.
var newDB = db.NewSQLDB

func init() {
	storage.Register("mssql", storage.Backend{Dialect: Dialect{}, Open: Open})
}

// Open validates the DSN early to fail fast on obvious mistakes, then opens
// and pings a single sqlserver connection.
func Open(ctx context.Context, cfg storage.Config) (db.DB, error) {
	dsn := BuildDSN(cfg)
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	d, err := newDB(ctx, "sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: %w", err)
	}
	return d, nil
}

// BuildDSN returns cfg.DSN when set, otherwise a sqlserver:// URL with the
// service as the database name.
func BuildDSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.Service != "" {
		q := url.Values{}
		q.Set("database", cfg.Service)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
