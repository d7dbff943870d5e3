package mysql

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

	if got := d.QuoteIdent("we`ird"); got != "`we``ird`" {
		t.Errorf("QuoteIdent = %s", got)
	}
	if got := d.TextType(200); got != "VARCHAR(200) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin" {
		t.Errorf("TextType(200) = %s", got)
	}
	if got := d.TextType(4000); got != "TEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin" {
		t.Errorf("TextType(4000) = %s", got)
	}
	if got, want := d.KeyEquals("`CITY`", "?"), "CAST(`CITY` AS BINARY) = CAST(? AS BINARY)"; got != want {
		t.Errorf("KeyEquals = %s, want %s", got, want)
	}

	m, err := d.MergeSQL("W", []string{"CITY", "TEMP"}, "CITY")
	if err != nil {
		t.Fatalf("MergeSQL: %v", err)
	}
	want := "INSERT INTO `W` (`CITY`, `TEMP`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `TEMP` = VALUES(`TEMP`)"
	if m != want {
		t.Errorf("MergeSQL =\n%s\nwant\n%s", m, want)
	}
}

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	got := BuildDSN(storage.Config{Host: "db", User: "root", Password: "pw", Service: "hr"})
	want := "root:pw@tcp(db:3306)/hr"
	if !strings.HasPrefix(got, want) {
		t.Fatalf("BuildDSN = %q, want %q", got, want)
	}
}

func TestRegistrationUsesNewDBHook(t *testing.T) {
	orig := newDB
	defer func() { newDB = orig }()

	var gotDriver, gotDSN string
	newDB = func(ctx context.Context, driver, dsn string) (db.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return nil, errors.New("stop")
	}
	_, err := storage.Connect(context.Background(), storage.Config{Kind: "mysql", Host: "db", Service: "hr"})
	if err == nil {
		t.Fatalf("expected hook error")
	}
	if gotDriver != "mysql" || !strings.HasPrefix(gotDSN, "tcp(db:3306)/hr") {
		t.Fatalf("hook got driver=%q dsn=%q", gotDriver, gotDSN)
	}
}
