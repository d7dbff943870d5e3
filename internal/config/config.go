// Package config holds every tunable of a load run. Values come from
// command-line flags whose defaults are seeded from environment variables,
// which in turn may be seeded from a .env file.
//
// For tests, use LoadFromArgs with a private FlagSet and a map-backed getenv:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	cfg, err := config.LoadFromArgs(fs, func(k string) string { return env[k] }, args)
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"xlsxloader/internal/storage"
)

// DefaultEnvFile is read when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// Config is the full run configuration.
type Config struct {
	// Source
	File          string
	Sheet         string
	RawValues     bool
	KeepBlankRows bool
	PreviewRows   int

	// Target
	Table              string
	Key                string
	Mode               string
	TextWidth          int
	UniqueKey          bool
	InsertOnlyOnCreate bool
	DryRun             bool
	RejectsFile        string

	// Database
	DBDriver   string
	DSN        string
	DBHost     string
	DBPort     int
	DBService  string
	DBUser     string
	DBPassword string

	// Runtime
	Timeout        time.Duration
	Job            string
	MetricsBackend string
	PushgatewayURL string
	StatsdAddr     string
	EnvFile        string
	ValidateOnly   bool
	Verbose        bool
}

// Storage returns the connection parameters for storage.Connect.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Kind:     c.DBDriver,
		DSN:      c.DSN,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Service:  c.DBService,
		User:     c.DBUser,
		Password: c.DBPassword,
	}
}

// LoadFromArgs defines flags on fs seeded from getenv and parses args.
// Explicit flags win over environment values.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	str := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	num := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
		return d
	}
	boolean := func(k string, d bool) bool {
		switch strings.ToLower(strings.TrimSpace(getenv(k))) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}
	dur := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if x, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
				return x
			}
		}
		return d
	}

	fs.StringVar(&cfg.File, "file", str("XLSX_FILE", ""), "Path to the .xlsx workbook")
	fs.StringVar(&cfg.Sheet, "sheet", str("XLSX_SHEET", ""), "Worksheet name (default: active sheet)")
	fs.BoolVar(&cfg.RawValues, "raw_values", boolean("RAW_VALUES", false), "Use raw stored cell values instead of formatted text")
	fs.BoolVar(&cfg.KeepBlankRows, "keep_blank_rows", boolean("KEEP_BLANK_ROWS", false), "Load rows whose cells are all empty")
	fs.IntVar(&cfg.PreviewRows, "preview", num("PREVIEW_ROWS", 5), "Number of data rows to log before loading")

	fs.StringVar(&cfg.Table, "table", str("TABLE_NAME", ""), "Target table, optionally schema-qualified")
	fs.StringVar(&cfg.Key, "key", str("PRIMARY_KEY", ""), "Header name of the primary-key column")
	fs.StringVar(&cfg.Mode, "mode", str("UPSERT_MODE", "compare"), "Upsert mode: compare, always, insert or merge")
	fs.IntVar(&cfg.TextWidth, "text_width", num("TEXT_WIDTH", 4000), "Width of the generated text columns")
	fs.BoolVar(&cfg.UniqueKey, "unique_key", boolean("UNIQUE_KEY", false), "Add a UNIQUE constraint on the key when creating the table")
	fs.BoolVar(&cfg.InsertOnlyOnCreate, "insert_only_on_create", boolean("INSERT_ONLY_ON_CREATE", false), "Skip lookups when the table was just created")
	fs.BoolVar(&cfg.DryRun, "dry_run", boolean("DRY_RUN", false), "Run every statement, then roll back; a missing table is not created and its DDL is only logged")
	fs.StringVar(&cfg.RejectsFile, "rejects", str("REJECTS_FILE", ""), "CSV file for rows that failed to load")

	fs.StringVar(&cfg.DBDriver, "db_driver", str("DB_DRIVER", "oracle"), "Database: oracle, postgres, mssql, mysql or sqlite")
	fs.StringVar(&cfg.DSN, "dsn", str("DB_DSN", ""), "Full DSN; overrides the discrete connection flags")
	fs.StringVar(&cfg.DBHost, "db_host", str("DB_HOST", "localhost"), "DB host")
	fs.IntVar(&cfg.DBPort, "db_port", num("DB_PORT", 0), "DB port (0: driver default)")
	fs.StringVar(&cfg.DBService, "db_service", str("DB_SERVICE", ""), "Oracle service name, database name, or SQLite file")
	fs.StringVar(&cfg.DBUser, "db_user", str("DB_USER", ""), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", str("DB_PASSWORD", ""), "DB password")

	fs.DurationVar(&cfg.Timeout, "timeout", dur("RUN_TIMEOUT", 0), "Abort the run after this long (0: no limit)")
	fs.StringVar(&cfg.Job, "job", str("JOB_NAME", "xlsxloader"), "Job name used in logs and metrics")
	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", str("METRICS_BACKEND", "none"), "Metrics backend: none, prompush or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", str("PUSHGATEWAY_URL", ""), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.StatsdAddr, "statsd_addr", str("STATSD_ADDR", ""), "DogStatsD address")
	fs.StringVar(&cfg.EnvFile, "env_file", str("ENV_FILE", DefaultEnvFile), "dotenv file seeding the environment")
	fs.BoolVar(&cfg.ValidateOnly, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.Verbose, "v", boolean("VERBOSE", false), "Verbose logging")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is the production entry point: it reads the .env file named by
// -env_file / ENV_FILE (default ".env"), layers the process environment on
// top and parses args.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	path, explicit := envFileFromArgs(args, os.Getenv)
	getenv, err := WithDotenv(path, explicit, os.Getenv)
	if err != nil {
		return nil, err
	}
	return LoadFromArgs(fs, getenv, args)
}

// WithDotenv returns a getenv that prefers base and falls back to the values
// in the dotenv file at path. The process environment is not modified. A
// missing file is an error only when required is true.
func WithDotenv(path string, required bool, base func(string) string) (func(string) string, error) {
	if path == "" {
		return base, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return func(k string) string {
		if v := base(k); v != "" {
			return v
		}
		return vals[k]
	}, nil
}

// envFileFromArgs finds -env_file in args before flags are parsed, since its
// value decides the defaults of every other flag.
func envFileFromArgs(args []string, getenv func(string) string) (path string, explicit bool) {
	for i := 0; i < len(args); i++ {
		a := strings.TrimLeft(args[i], "-")
		if len(a) == len(args[i]) || a == "" {
			continue
		}
		if v, ok := strings.CutPrefix(a, "env_file="); ok {
			return v, true
		}
		if a == "env_file" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	if v := getenv("ENV_FILE"); v != "" {
		return v, true
	}
	return DefaultEnvFile, false
}
