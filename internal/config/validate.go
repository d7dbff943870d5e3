package config

import (
	"fmt"
	"strings"

	"xlsxloader/internal/storage"
	"xlsxloader/internal/upsert"
)

// IssueSeverity classifies a validation finding.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged; the run proceeds.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the configuration statically. The storage backend for
// DBDriver must already be registered.
func (c *Config) Validate() []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.File) == "" {
		add(SeverityError, "file", "workbook path must not be empty")
	}
	if strings.TrimSpace(c.Table) == "" {
		add(SeverityError, "table", "table name must not be empty")
	} else if strings.Count(c.Table, ".") > 1 {
		add(SeverityError, "table", "table name %q has more than one schema qualifier", c.Table)
	}
	if strings.TrimSpace(c.Key) == "" {
		add(SeverityError, "key", "primary-key column must not be empty")
	}

	mode, err := upsert.ParseMode(c.Mode)
	if err != nil {
		add(SeverityError, "mode", "%v", err)
	}

	kind := strings.ToLower(strings.TrimSpace(c.DBDriver))
	if _, ok := storage.Lookup(kind); !ok {
		add(SeverityError, "db_driver", "unsupported driver %q (registered: %s)", c.DBDriver, strings.Join(storage.Kinds(), ", "))
	}
	if c.DSN == "" {
		switch kind {
		case "sqlite":
			if c.DBService == "" {
				add(SeverityError, "db_service", "sqlite needs -dsn or -db_service (database file)")
			}
		default:
			if c.DBHost == "" {
				add(SeverityError, "db_host", "db_host or dsn is required")
			}
			if c.DBService == "" && kind == "oracle" {
				add(SeverityError, "db_service", "oracle needs a service name")
			}
		}
	}
	if c.DBPort < 0 || c.DBPort > 65535 {
		add(SeverityError, "db_port", "port %d out of range", c.DBPort)
	}

	if c.TextWidth <= 0 {
		add(SeverityError, "text_width", "must be > 0")
	} else if kind == "oracle" && c.TextWidth > 4000 {
		add(SeverityWarning, "text_width", "VARCHAR2(%d) needs MAX_STRING_SIZE=EXTENDED", c.TextWidth)
	}

	if mode == upsert.ModeMerge {
		switch kind {
		case "postgres", "sqlite", "mysql":
			if !c.UniqueKey {
				add(SeverityWarning, "mode", "merge on %s needs a UNIQUE constraint on the key; set -unique_key when the table is created", kind)
			}
		}
		if c.InsertOnlyOnCreate {
			add(SeverityWarning, "insert_only_on_create", "ignored in merge mode")
		}
	}

	if c.PreviewRows < 0 {
		add(SeverityError, "preview", "must be >= 0")
	}
	if c.Timeout < 0 {
		add(SeverityError, "timeout", "must be >= 0")
	}

	switch strings.ToLower(c.MetricsBackend) {
	case "", "none":
	case "prompush":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway_url", "required for metrics_backend=prompush")
		}
	case "datadog":
		if c.StatsdAddr == "" {
			add(SeverityError, "statsd_addr", "required for metrics_backend=datadog")
		}
	default:
		add(SeverityError, "metrics_backend", "unknown backend %q (want none, prompush or datadog)", c.MetricsBackend)
	}
	if strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "job name is empty; metrics will be unlabeled")
	}

	return issues
}
