package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"xlsxloader/internal/db"
	"xlsxloader/internal/storage"
)

func TestDialectSQL(t *testing.T) {
	t.Parallel()
	d := Dialect{}

	if got := d.QuoteTable("hr.weather"); got != `"hr"."weather"` {
		t.Errorf("QuoteTable = %s", got)
	}
	if got := storage.Placeholders(d, 1, 3); got != "$1, $2, $3" {
		t.Errorf("Placeholders = %s", got)
	}
	if got := d.TextType(4000); got != "VARCHAR(4000)" {
		t.Errorf("TextType = %s", got)
	}

	q, args := d.TableExistsSQL("hr.weather")
	if len(args) != 2 || args[0] != "HR" || args[1] != "WEATHER" {
		t.Errorf("qualified args = %v (%s)", args, q)
	}
	q, args = d.TableExistsSQL("weather")
	if len(args) != 1 || args[0] != "WEATHER" {
		t.Errorf("unqualified args = %v", args)
	}
	if !strings.HasPrefix(q, "SELECT COUNT(*), MIN(table_name) FROM information_schema.tables") {
		t.Errorf("TableExistsSQL = %s", q)
	}
	if storage.EmptyStringIsNull(d) {
		t.Errorf("EmptyStringIsNull = true, want false")
	}

	m, err := d.MergeSQL("W", []string{"CITY", "TEMP"}, "CITY")
	if err != nil {
		t.Fatalf("MergeSQL: %v", err)
	}
	want := `INSERT INTO "W" ("CITY", "TEMP") VALUES ($1, $2) ON CONFLICT ("CITY") DO UPDATE SET "TEMP" = EXCLUDED."TEMP"`
	if m != want {
		t.Errorf("MergeSQL =\n%s\nwant\n%s", m, want)
	}
}

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	got := BuildDSN(storage.Config{Host: "db", Service: "app", User: "u", Password: "p@ss"})
	want := "postgres://u:p%40ss@db:5432/app"
	if got != want {
		t.Fatalf("BuildDSN = %q, want %q", got, want)
	}
	if got := BuildDSN(storage.Config{DSN: "postgres://x"}); got != "postgres://x" {
		t.Fatalf("explicit DSN not passed through: %q", got)
	}
}

func TestRegistrationUsesNewDBHook(t *testing.T) {
	orig := newDB
	defer func() { newDB = orig }()

	var gotDSN string
	newDB = func(ctx context.Context, dsn string) (db.DB, error) {
		gotDSN = dsn
		return nil, errors.New("refused")
	}

	_, err := storage.Connect(context.Background(), storage.Config{Kind: "postgres", Host: "h", Port: 6543, Service: "d"})
	var ce *storage.ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *storage.ConnectError", err)
	}
	if gotDSN != "postgres://h:6543/d" {
		t.Fatalf("hook dsn = %q", gotDSN)
	}
}
