// Package rejects records rows the loader could not write to a CSV file,
// with a counter per reason.
package rejects

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Header is the first line of every rejects file.
var Header = []string{"reason", "row_number", "key", "row_data"}

// Log appends rejected rows to a CSV file. It is not safe for concurrent use.
type Log struct {
	reasons map[string]int
	f       *os.File
	w       *csv.Writer
}

// Open creates path (and its parent directories) and writes the header.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Log{reasons: make(map[string]int), f: f, w: w}, nil
}

// Add records one row. values are encoded as a single CSV line in row_data.
func (l *Log) Add(reason string, rowNum int, key string, values []string) error {
	l.reasons[reason]++
	return l.w.Write([]string{reason, strconv.Itoa(rowNum), key, encodeRow(values)})
}

// Counts returns a copy of the per-reason counters.
func (l *Log) Counts() map[string]int {
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Summary renders the counters as "a=1 b=2", sorted by reason.
func (l *Log) Summary() string {
	keys := make([]string, 0, len(l.reasons))
	for k := range l.reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Itoa(l.reasons[k])
	}
	return strings.Join(parts, " ")
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func encodeRow(values []string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(values)
	w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
