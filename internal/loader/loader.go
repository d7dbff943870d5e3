// Package loader runs one spreadsheet-to-table load: read the sheet, connect,
// make sure the table exists, upsert every row, close the connection.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"xlsxloader/internal/config"
	"xlsxloader/internal/metrics"
	"xlsxloader/internal/rejects"
	"xlsxloader/internal/schema"
	"xlsxloader/internal/sheet"
	"xlsxloader/internal/storage"
	"xlsxloader/internal/upsert"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitRead    = 1
	ExitConnect = 2
	ExitPartial = 3
	ExitConfig  = 4
	ExitAborted = 5
)

// Stage names the last step a run reached.
type Stage string

const (
	StageConfig  Stage = "config"
	StageRead    Stage = "read"
	StageConnect Stage = "connect"
	StageSchema  Stage = "schema"
	StageUpsert  Stage = "upsert"
	StageDone    Stage = "done"
)

// Deps are the side-effecting boundaries of Run. Tests replace them.
type Deps struct {
	ReadSheet   func(path string, opts sheet.Options) (*sheet.Sheet, error)
	Connect     func(ctx context.Context, cfg storage.Config) (*storage.Conn, error)
	OpenRejects func(path string) (*rejects.Log, error)
}

// DefaultDeps wires the real reader, connection manager and rejects file.
func DefaultDeps() Deps {
	return Deps{
		ReadSheet:   sheet.Read,
		Connect:     storage.Connect,
		OpenRejects: rejects.Open,
	}
}

// Report is the outcome of a run.
type Report struct {
	Stage Stage
	// Err is the error that stopped the run, if any.
	Err error
	// SchemaErr holds a lookup or CREATE TABLE failure; the run continued.
	SchemaErr error
	// PlannedDDL is the CREATE TABLE a dry run would have executed.
	PlannedDDL string
	Issues    []config.Issue
	Table     string
	Key       string
	Rows      int
	Created   bool
	Mode      upsert.Mode
	Result    *upsert.Result
	ExitCode  int
}

// Run executes the load described by cfg. It never panics on bad input and
// always closes what it opened.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (rep Report) {
	rep.Stage = StageConfig
	rep.Issues = cfg.Validate()
	for _, is := range rep.Issues {
		log.Printf("config: %v", is)
	}
	if config.HasErrors(rep.Issues) {
		rep.Err = errors.New("invalid configuration")
		rep.ExitCode = ExitConfig
		return rep
	}
	mode, _ := upsert.ParseMode(cfg.Mode)
	rep.Mode = mode
	rep.Table = sheet.NormalizeName(cfg.Table)
	rep.Key = sheet.NormalizeName(cfg.Key)
	job := cfg.Job

	// Read
	rep.Stage = StageRead
	path := sheet.CleanPath(cfg.File)
	start := time.Now()
	s, err := deps.ReadSheet(path, sheet.Options{
		Sheet:         cfg.Sheet,
		RawValues:     cfg.RawValues,
		KeepBlankRows: cfg.KeepBlankRows,
	})
	metrics.RecordStep(job, string(StageRead), err, time.Since(start))
	if err != nil {
		log.Printf("loader: read failed file=%s err=%v", path, err)
		rep.Err = err
		rep.ExitCode = ExitRead
		return rep
	}
	rep.Rows = len(s.Rows)
	metrics.RecordRow(job, "read", len(s.Rows))
	logSheet(s, cfg.PreviewRows, cfg.Verbose)

	if s.Index(rep.Key) < 0 {
		rep.Err = fmt.Errorf("%w: %q not in %v", upsert.ErrKeyNotInHeader, rep.Key, s.Columns)
		log.Printf("loader: %v", rep.Err)
		rep.ExitCode = ExitConfig
		return rep
	}

	// Connect
	rep.Stage = StageConnect
	start = time.Now()
	conn, err := deps.Connect(ctx, cfg.Storage())
	metrics.RecordStep(job, string(StageConnect), err, time.Since(start))
	if err != nil {
		rep.Err = err
		rep.ExitCode = ExitConnect
		return rep
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			log.Printf("loader: close connection err=%v", err)
		} else {
			log.Printf("loader: connection closed")
		}
	}()

	// Schema
	rep.Stage = StageSchema
	rec := schema.New(conn)
	rec.TextWidth = cfg.TextWidth
	if cfg.UniqueKey {
		rec.UniqueKey = rep.Key
	}
	start = time.Now()
	if cfg.DryRun {
		var exists bool
		exists, rep.SchemaErr = rec.Exists(ctx, rep.Table)
		if !exists {
			stmt, err := rec.CreateSQL(rep.Table, s.Columns)
			rep.SchemaErr = errors.Join(rep.SchemaErr, err)
			rep.PlannedDDL = stmt
		}
	} else {
		rep.Created, rep.SchemaErr = rec.Ensure(ctx, rep.Table, s.Columns)
	}
	metrics.RecordStep(job, string(StageSchema), rep.SchemaErr, time.Since(start))
	if rep.PlannedDDL != "" {
		log.Printf("loader: dry run, table=%s absent; would create it and insert rows=%d\n%s", rep.Table, len(s.Rows), rep.PlannedDDL)
		rep.Stage = StageDone
		return rep
	}
	if rep.SchemaErr != nil && !rep.Created {
		log.Printf("loader: continuing against presumed existing table=%s", rep.Table)
	}

	if rep.Created && cfg.InsertOnlyOnCreate && (mode == upsert.ModeCompare || mode == upsert.ModeAlways) {
		mode = upsert.ModeInsert
		rep.Mode = mode
		log.Printf("loader: table created, inserting without lookups")
	}

	// Upsert
	rep.Stage = StageUpsert
	opts := upsert.Options{Mode: mode, DryRun: cfg.DryRun}
	if cfg.RejectsFile != "" {
		rl, err := deps.OpenRejects(cfg.RejectsFile)
		if err != nil {
			log.Printf("loader: rejects file disabled err=%v", err)
		} else {
			defer func() {
				if err := rl.Close(); err != nil {
					log.Printf("loader: close rejects err=%v", err)
				}
				if s := rl.Summary(); s != "" {
					log.Printf("loader: rejects file=%s %s", cfg.RejectsFile, s)
				}
			}()
			opts.OnRowError = func(re *upsert.RowError) {
				if err := rl.Add(re.Stage, re.Row, re.Key, re.Values); err != nil {
					log.Printf("loader: write reject row=%d err=%v", re.Row, err)
				}
			}
		}
	}

	start = time.Now()
	res, err := upsert.New(conn, opts).Run(ctx, upsert.Batch{
		Table:   rep.Table,
		Columns: s.Columns,
		Rows:    s.Rows,
		Key:     rep.Key,
		Lines:   s.Lines,
	})
	metrics.RecordStep(job, string(StageUpsert), err, time.Since(start))
	rep.Result = res
	recordResult(job, res)
	if err != nil {
		log.Printf("loader: batch aborted, nothing committed table=%s err=%v", rep.Table, err)
		rep.Err = err
		rep.ExitCode = ExitAborted
		return rep
	}

	log.Printf("loader: table=%s mode=%s rows=%d inserted=%d updated=%d unchanged=%d merged=%d failed=%d duplicate_keys=%d committed=%t",
		rep.Table, mode, len(s.Rows), res.Inserted, res.Updated, res.Unchanged, res.Merged, res.Failed, res.DuplicateKeys, res.Committed)

	rep.Stage = StageDone
	if res.Failed > 0 {
		rep.ExitCode = ExitPartial
	}
	return rep
}

func logSheet(s *sheet.Sheet, preview int, verbose bool) {
	log.Printf("loader: sheet=%s columns=%s rows=%d blank_skipped=%d",
		s.Name, strings.Join(s.Columns, ","), len(s.Rows), s.Blank)
	if dups := s.DuplicateColumns(); len(dups) > 0 {
		log.Printf("loader: warning duplicate columns=%s", strings.Join(dups, ","))
	}
	if verbose {
		preview = len(s.Rows)
	}
	for i, r := range s.Preview(preview) {
		log.Printf("loader: preview row=%d %q", s.RowNumber(i), r)
	}
}

func recordResult(job string, res *upsert.Result) {
	if res == nil {
		return
	}
	metrics.RecordRow(job, "inserted", res.Inserted)
	metrics.RecordRow(job, "updated", res.Updated)
	metrics.RecordRow(job, "unchanged", res.Unchanged)
	metrics.RecordRow(job, "merged", res.Merged)
	metrics.RecordRow(job, "failed", res.Failed)
	metrics.RecordRow(job, "duplicate_keys", res.DuplicateKeys)
}
