package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"xlsxloader/internal/config"
	"xlsxloader/internal/loader"
	"xlsxloader/internal/metrics"
)

func testCfg() *config.Config {
	return &config.Config{
		File:           "w.xlsx",
		Table:          "weather",
		Key:            "city",
		Mode:           "compare",
		DBDriver:       "sqlite",
		DBService:      "w.db",
		TextWidth:      4000,
		PreviewRows:    5,
		MetricsBackend: "none",
		Job:            "test",
	}
}

func TestDefaultDeps_ProvidesProductionWiring(t *testing.T) {
	d := defaultDeps()
	if d.Run == nil || d.SetupMetrics == nil {
		t.Fatalf("run and metrics setup must be non-nil")
	}
	if d.Loader.ReadSheet == nil || d.Loader.Connect == nil || d.Loader.OpenRejects == nil {
		t.Fatalf("loader deps must be non-nil")
	}
}

func TestRun_ReturnsReportExitCode(t *testing.T) {
	var gotDeadline bool
	deps := Deps{
		SetupMetrics: func(*config.Config) error { return errors.New("no agent") },
		Run: func(ctx context.Context, cfg *config.Config, _ loader.Deps) loader.Report {
			_, gotDeadline = ctx.Deadline()
			return loader.Report{Stage: loader.StageUpsert, ExitCode: loader.ExitPartial}
		},
	}
	cfg := testCfg()
	cfg.Timeout = time.Minute

	if code := run(context.Background(), cfg, deps); code != loader.ExitPartial {
		t.Fatalf("exit = %d, want %d", code, loader.ExitPartial)
	}
	if !gotDeadline {
		t.Fatalf("timeout not applied to context")
	}
}

func TestRun_ValidateOnly(t *testing.T) {
	called := false
	deps := Deps{
		SetupMetrics: func(*config.Config) error { return nil },
		Run: func(context.Context, *config.Config, loader.Deps) loader.Report {
			called = true
			return loader.Report{}
		},
	}

	cfg := testCfg()
	cfg.ValidateOnly = true
	if code := run(context.Background(), cfg, deps); code != loader.ExitOK {
		t.Fatalf("valid config exit = %d", code)
	}

	cfg.Key = ""
	if code := run(context.Background(), cfg, deps); code != loader.ExitConfig {
		t.Fatalf("invalid config exit = %d", code)
	}
	if called {
		t.Fatalf("-validate must not run the load")
	}
}

func TestSetupMetrics(t *testing.T) {
	defer metrics.Reset()

	cfg := testCfg()
	if err := setupMetrics(cfg); err != nil {
		t.Fatalf("none: %v", err)
	}

	cfg.MetricsBackend = "prompush"
	if err := setupMetrics(cfg); err == nil {
		t.Fatalf("prompush without URL should fail")
	}
	cfg.PushgatewayURL = "http://127.0.0.1:9091"
	if err := setupMetrics(cfg); err != nil {
		t.Fatalf("prompush: %v", err)
	}

	cfg.MetricsBackend = "datadog"
	if err := setupMetrics(cfg); err == nil {
		t.Fatalf("datadog without address should fail")
	}
}
