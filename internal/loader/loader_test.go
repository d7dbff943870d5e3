package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"xlsxloader/internal/config"
	"xlsxloader/internal/db"
	"xlsxloader/internal/metrics"
	"xlsxloader/internal/schema"
	"xlsxloader/internal/sheet"
	"xlsxloader/internal/storage"
	"xlsxloader/internal/storage/sqlite"
	"xlsxloader/internal/upsert"
)

func writeBook(t *testing.T, dir string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(dir, "weather.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func baseConfig(file, dbFile string) *config.Config {
	return &config.Config{
		File:           file,
		Table:          "weather",
		Key:            "city",
		Mode:           "compare",
		DBDriver:       "sqlite",
		DBService:      dbFile,
		TextWidth:      4000,
		PreviewRows:    5,
		MetricsBackend: "none",
		Job:            "test",
	}
}

// query opens dbFile independently of the loader and returns CITY -> TEMPERATURE.
func query(t *testing.T, dbFile string) map[string]string {
	t.Helper()
	ctx := context.Background()
	d, err := db.NewSQLDB(ctx, "sqlite", dbFile)
	if err != nil {
		t.Fatalf("NewSQLDB: %v", err)
	}
	defer d.Close(ctx)
	tx, err := d.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	defer tx.Rollback(ctx)
	rows, err := tx.Query(ctx, `SELECT "CITY", "TEMPERATURE" FROM "WEATHER"`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var c, tmp string
		if err := rows.Scan(&c, &tmp); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out[c] = tmp
	}
	return out
}

func TestRun_CreatesThenUpserts(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "w.db")

	book := writeBook(t, dir, [][]any{
		{"City", "Temperature", "Humidity"},
		{"Paris", "20", "60"},
		{"Berlin", "18", "55"},
	})
	rep := Run(context.Background(), baseConfig(book, dbFile), DefaultDeps())
	if rep.ExitCode != ExitOK || rep.Err != nil {
		t.Fatalf("first run = %+v", rep)
	}
	if !rep.Created || rep.Result.Inserted != 2 || rep.Stage != StageDone {
		t.Fatalf("first run = %+v result=%+v", rep, rep.Result)
	}

	book = writeBook(t, dir, [][]any{
		{"City", "Temperature", "Humidity"},
		{"Paris", "21", "60"},
		{"Berlin", "18", "55"},
		{"Oslo", "5", "80"},
	})
	rep = Run(context.Background(), baseConfig(book, dbFile), DefaultDeps())
	if rep.ExitCode != ExitOK || rep.Created {
		t.Fatalf("second run = %+v", rep)
	}
	res := rep.Result
	if res.Updated != 1 || res.Unchanged != 1 || res.Inserted != 1 || !res.Committed {
		t.Fatalf("second run result = %+v", res)
	}

	got := query(t, dbFile)
	want := map[string]string{"Paris": "21", "Berlin": "18", "Oslo": "5"}
	if len(got) != len(want) {
		t.Fatalf("table = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("table = %v, want %v", got, want)
		}
	}
}

func TestRun_PartialFailureWritesRejects(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "w.db")
	ctx := context.Background()

	d, err := db.NewSQLDB(ctx, "sqlite", dbFile)
	if err != nil {
		t.Fatalf("NewSQLDB: %v", err)
	}
	if err := d.Exec(ctx, `CREATE TABLE "WEATHER" ("CITY" TEXT, "TEMPERATURE" TEXT CHECK (length("TEMPERATURE") <= 3), "HUMIDITY" TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = d.Close(ctx)

	book := writeBook(t, dir, [][]any{
		{"City", "Temperature", "Humidity"},
		{"Paris", "21", "60"},
		{"Rome", "9999", "40"},
		{"Berlin", "18", "55"},
	})
	cfg := baseConfig(book, dbFile)
	cfg.RejectsFile = filepath.Join(dir, "out", "rejects.csv")

	rep := Run(ctx, cfg, DefaultDeps())
	if rep.ExitCode != ExitPartial || rep.Created {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Result.Inserted != 2 || rep.Result.Failed != 1 {
		t.Fatalf("result = %+v", rep.Result)
	}

	f, err := os.Open(cfg.RejectsFile)
	if err != nil {
		t.Fatalf("open rejects: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read rejects: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "insert" || rows[1][1] != "3" || rows[1][2] != "Rome" {
		t.Fatalf("rejects = %v", rows)
	}
}

func TestRun_InsertOnlyOnCreate(t *testing.T) {
	dir := t.TempDir()
	book := writeBook(t, dir, [][]any{{"City", "Temperature"}, {"Paris", "21"}})
	cfg := baseConfig(book, filepath.Join(dir, "w.db"))
	cfg.InsertOnlyOnCreate = true

	rep := Run(context.Background(), cfg, DefaultDeps())
	if rep.ExitCode != ExitOK || rep.Mode != upsert.ModeInsert || rep.Result.Inserted != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

// tableCount reports how many tables named WEATHER exist in dbFile.
func tableCount(t *testing.T, dbFile string) int {
	t.Helper()
	ctx := context.Background()
	d, err := db.NewSQLDB(ctx, "sqlite", dbFile)
	if err != nil {
		t.Fatalf("NewSQLDB: %v", err)
	}
	defer d.Close(ctx)
	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'WEATHER'`).Scan(&n); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return n
}

func createWeather(t *testing.T, dbFile string) {
	t.Helper()
	ctx := context.Background()
	d, err := db.NewSQLDB(ctx, "sqlite", dbFile)
	if err != nil {
		t.Fatalf("NewSQLDB: %v", err)
	}
	defer d.Close(ctx)
	if err := d.Exec(ctx, `CREATE TABLE "WEATHER" ("CITY" TEXT, "TEMPERATURE" TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestRun_DryRunLeavesTableEmpty(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "w.db")
	createWeather(t, dbFile)
	book := writeBook(t, dir, [][]any{{"City", "Temperature"}, {"Paris", "21"}})
	cfg := baseConfig(book, dbFile)
	cfg.DryRun = true

	rep := Run(context.Background(), cfg, DefaultDeps())
	if rep.ExitCode != ExitOK || rep.PlannedDDL != "" || rep.Result.Committed || rep.Result.Inserted != 1 {
		t.Fatalf("report = %+v result=%+v", rep, rep.Result)
	}
	if got := query(t, dbFile); len(got) != 0 {
		t.Fatalf("dry run left rows: %v", got)
	}
}

func TestRun_DryRunDoesNotCreateTable(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "w.db")
	book := writeBook(t, dir, [][]any{{"City", "Temperature"}, {"Paris", "21"}})
	cfg := baseConfig(book, dbFile)
	cfg.DryRun = true

	rep := Run(context.Background(), cfg, DefaultDeps())
	if rep.ExitCode != ExitOK || rep.Stage != StageDone || rep.Created || rep.Result != nil {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.HasPrefix(rep.PlannedDDL, `CREATE TABLE "WEATHER" (`) {
		t.Fatalf("PlannedDDL = %q", rep.PlannedDDL)
	}
	if n := tableCount(t, dbFile); n != 0 {
		t.Fatalf("dry run created the table")
	}
}

// brokenCatalog fails the existence query and forwards everything else.
type brokenCatalog struct{ storage.Dialect }

func (brokenCatalog) TableExistsSQL(string) (string, []any) {
	return "SELECT COUNT(*), MIN(name) FROM no_such_catalog", nil
}

func TestRun_SchemaErrors(t *testing.T) {
	tests := []struct {
		name        string
		precreate   bool
		wantCreate  bool
		wantCreated bool
	}{
		{name: "lookup fails, table exists", precreate: true, wantCreate: true},
		{name: "lookup fails, table absent", wantCreated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dbFile := filepath.Join(dir, "w.db")
			if tt.precreate {
				createWeather(t, dbFile)
			}
			book := writeBook(t, dir, [][]any{{"City", "Temperature"}, {"Paris", "21"}, {"Berlin", "18"}})

			deps := DefaultDeps()
			deps.Connect = func(ctx context.Context, c storage.Config) (*storage.Conn, error) {
				conn, err := storage.Connect(ctx, c)
				if err != nil {
					return nil, err
				}
				conn.Dialect = brokenCatalog{conn.Dialect}
				return conn, nil
			}

			rep := Run(context.Background(), baseConfig(book, dbFile), deps)
			if rep.ExitCode != ExitOK || rep.Stage != StageDone || rep.Created != tt.wantCreated {
				t.Fatalf("report = %+v", rep)
			}
			var qe *schema.QueryError
			if !errors.As(rep.SchemaErr, &qe) {
				t.Fatalf("SchemaErr = %v, want *schema.QueryError", rep.SchemaErr)
			}
			var ce *schema.CreateError
			if errors.As(rep.SchemaErr, &ce) != tt.wantCreate {
				t.Fatalf("SchemaErr = %v, CreateError present = %v", rep.SchemaErr, !tt.wantCreate)
			}
			if rep.Result.Inserted != 2 || !rep.Result.Committed {
				t.Fatalf("result = %+v", rep.Result)
			}
			if got := query(t, dbFile); got["Paris"] != "21" || got["Berlin"] != "18" {
				t.Fatalf("table = %v", got)
			}
		})
	}
}

func TestRun_FailureStages(t *testing.T) {
	goodSheet := &sheet.Sheet{Name: "Sheet1", Columns: []string{"CITY", "TEMPERATURE"}, Rows: [][]string{{"Paris", "21"}}}
	readOK := func(string, sheet.Options) (*sheet.Sheet, error) { return goodSheet, nil }
	connectCalled := false
	noConnect := func(context.Context, storage.Config) (*storage.Conn, error) {
		connectCalled = true
		return nil, errors.New("must not connect")
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		deps    Deps
		code    int
		stage   Stage
		connect bool
	}{
		{
			name:   "invalid config",
			mutate: func(c *config.Config) { c.Key = "" },
			deps:   Deps{ReadSheet: readOK, Connect: noConnect},
			code:   ExitConfig,
			stage:  StageConfig,
		},
		{
			name:   "read failure",
			mutate: func(*config.Config) {},
			deps: Deps{
				ReadSheet: func(p string, _ sheet.Options) (*sheet.Sheet, error) {
					return nil, &sheet.ReadError{Path: p, Err: os.ErrNotExist}
				},
				Connect: noConnect,
			},
			code:  ExitRead,
			stage: StageRead,
		},
		{
			name:   "key not in header",
			mutate: func(c *config.Config) { c.Key = "station" },
			deps:   Deps{ReadSheet: readOK, Connect: noConnect},
			code:   ExitConfig,
			stage:  StageRead,
		},
		{
			name:   "connect failure",
			mutate: func(*config.Config) {},
			deps: Deps{
				ReadSheet: readOK,
				Connect: func(_ context.Context, c storage.Config) (*storage.Conn, error) {
					connectCalled = true
					return nil, &storage.ConnectError{Kind: c.Kind, Err: errors.New("refused")}
				},
			},
			code:    ExitConnect,
			stage:   StageConnect,
			connect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connectCalled = false
			cfg := baseConfig("\u202aweather.xlsx", "unused.db")
			tt.mutate(cfg)

			rep := Run(context.Background(), cfg, tt.deps)
			if rep.ExitCode != tt.code || rep.Stage != tt.stage || rep.Err == nil {
				t.Fatalf("report = %+v, want code %d at %s", rep, tt.code, tt.stage)
			}
			if connectCalled != tt.connect {
				t.Fatalf("connect called = %v, want %v", connectCalled, tt.connect)
			}
		})
	}
}

func TestRun_CanceledContextAbortsBatch(t *testing.T) {
	d, err := db.NewSQLDB(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewSQLDB: %v", err)
	}
	closed := false
	conn := &storage.Conn{DB: closeSpy{DB: d, closed: &closed}, Dialect: sqlite.Dialect{}}

	deps := Deps{
		ReadSheet: func(string, sheet.Options) (*sheet.Sheet, error) {
			return &sheet.Sheet{Columns: []string{"CITY"}, Rows: [][]string{{"Paris"}}}, nil
		},
		Connect: func(context.Context, storage.Config) (*storage.Conn, error) { return conn, nil },
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := Run(ctx, baseConfig("w.xlsx", "unused.db"), deps)
	if rep.ExitCode != ExitAborted || rep.Stage != StageUpsert {
		t.Fatalf("report = %+v", rep)
	}
	if !closed {
		t.Fatalf("connection not closed on abort")
	}
}

type closeSpy struct {
	db.DB
	closed *bool
}

func (c closeSpy) Close(ctx context.Context) error {
	*c.closed = true
	return c.DB.Close(ctx)
}

type stepCounter struct{ steps map[string]string }

func (s *stepCounter) IncCounter(name string, _ float64, l metrics.Labels) {
	if name == metrics.StepTotal {
		s.steps[l["step"]] = l["status"]
	}
}
func (s *stepCounter) ObserveHistogram(string, float64, metrics.Labels) {}
func (s *stepCounter) Flush() error                                   { return nil }

func TestRun_RecordsStepMetrics(t *testing.T) {
	defer metrics.Reset()
	sc := &stepCounter{steps: map[string]string{}}
	metrics.SetBackend(sc)

	dir := t.TempDir()
	book := writeBook(t, dir, [][]any{{"City"}, {"Paris"}})
	rep := Run(context.Background(), baseConfig(book, filepath.Join(dir, "w.db")), DefaultDeps())
	if rep.ExitCode != ExitOK {
		t.Fatalf("report = %+v", rep)
	}
	for _, step := range []string{"read", "connect", "schema", "upsert"} {
		if sc.steps[step] != "success" {
			t.Fatalf("steps = %v, want %s=success", sc.steps, step)
		}
	}
}
