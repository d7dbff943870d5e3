// Package storage is the connection manager. Backends (oracle, postgres,
// mssql, mysql, sqlite) register a Dialect and an Open function at init time;
// callers connect through Connect without importing any driver.
//
// Wiring: import xlsxloader/internal/storage/all for its side effects.
package storage

import (
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"xlsxloader/internal/db"
)

// Config carries connection parameters. When DSN is empty the backend builds
// one from Host, Port, Service, User and Password. Service is the Oracle
// service name, the database name for Postgres/MSSQL/MySQL, and the file
// path for SQLite.
type Config struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	Service  string
	User     string
	Password string
}

// Target renders the connection target without credentials, for logs.
func (c Config) Target() string {
	if c.DSN != "" {
		return "dsn"
	}
	if c.Host == "" {
		return c.Service
	}
	hp := c.Host
	if c.Port > 0 {
		hp = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.Service == "" {
		return hp
	}
	return hp + "/" + c.Service
}

// OpenFunc opens and verifies a single connection.
type OpenFunc func(ctx context.Context, cfg Config) (db.DB, error)

// Backend pairs a dialect with its connection constructor.
type Backend struct {
	Dialect Dialect
	Open    OpenFunc
}

// Conn is an open connection plus the dialect needed to talk to it.
type Conn struct {
	DB      db.DB
	Dialect Dialect
}

// Close releases the connection.
func (c *Conn) Close(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close(ctx)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers (or replaces) the backend for kind. It is typically
// called from backend packages' init() functions.
func Register(kind string, b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(kind)] = b
}

// Lookup returns the registered backend for kind.
func Lookup(kind string) (Backend, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[strings.ToLower(kind)]
	return b, ok
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Connect opens a connection for cfg.Kind. It logs a status line either way
// and returns a *ConnectError on failure; the caller decides whether to stop.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	b, ok := Lookup(cfg.Kind)
	if !ok {
		err := &ConnectError{
			Kind:   cfg.Kind,
			Target: cfg.Target(),
			Err:    fmt.Errorf("unknown storage kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", ")),
		}
		log.Printf("storage: connect failed kind=%s err=%v", cfg.Kind, err.Err)
		return nil, err
	}

	d, err := b.Open(ctx, cfg)
	if err != nil {
		log.Printf("storage: connect failed kind=%s target=%s err=%v", cfg.Kind, cfg.Target(), err)
		return nil, &ConnectError{Kind: cfg.Kind, Target: cfg.Target(), Err: err}
	}

	log.Printf("storage: connected kind=%s target=%s", cfg.Kind, cfg.Target())
	return &Conn{DB: d, Dialect: b.Dialect}, nil
}

// ConnectError reports a failure to establish the connection.
type ConnectError struct {
	Kind   string
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s: %v", e.Kind, e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
