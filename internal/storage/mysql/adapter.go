package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 3306

// newDB is a test hook that points to db.NewSQLDB by default.
var newDB = db.NewSQLDB

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", storage.Backend{Dialect: Dialect{}, Open: Open})
}

// Open opens and pings a single mysql connection.
func Open(ctx context.Context, cfg storage.Config) (db.DB, error) {
	dsn := BuildDSN(cfg)
	if _, err := gomysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	d, err := newDB(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return d, nil
}

// BuildDSN returns cfg.DSN when set, otherwise a driver DSN built with
// mysql.Config so credentials are escaped by the driver.
func BuildDSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Service
	return mc.FormatDSN()
}
