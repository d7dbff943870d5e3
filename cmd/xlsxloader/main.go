// Command xlsxloader loads one worksheet of an .xlsx workbook into a database
// table, creating the table from the header when it does not exist and
// upserting every row on a key column.
//
// Usage:
//
//	xlsxloader -file weather.xlsx -table weather -key city \
//	  -db_driver oracle -db_host db -db_service XEPDB1 -db_user scott
//
// Every flag has an environment fallback (see -help); a .env file in the
// working directory, or the one named by -env_file, seeds the environment.
// The exit code tells which stage failed: 1 read, 2 connect, 3 some rows
// failed, 4 configuration, 5 batch aborted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"xlsxloader/internal/config"
	"xlsxloader/internal/loader"
	"xlsxloader/internal/metrics"
	"xlsxloader/internal/metrics/datadog"
	"xlsxloader/internal/metrics/prompush"

	_ "xlsxloader/internal/storage/all"
)

// Deps holds the seams run needs so tests can avoid real I/O.
type Deps struct {
	Loader       loader.Deps
	Run          func(ctx context.Context, cfg *config.Config, deps loader.Deps) loader.Report
	SetupMetrics func(cfg *config.Config) error
}

func defaultDeps() Deps {
	return Deps{
		Loader:       loader.DefaultDeps(),
		Run:          loader.Run,
		SetupMetrics: setupMetrics,
	}
}

// run executes one load and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, deps Deps) int {
	if cfg.ValidateOnly {
		issues := cfg.Validate()
		for _, is := range issues {
			log.Printf("config: %v", is)
		}
		if config.HasErrors(issues) {
			return loader.ExitConfig
		}
		log.Printf("config: ok")
		return loader.ExitOK
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := deps.SetupMetrics(cfg); err != nil {
		log.Printf("metrics: disabled err=%v", err)
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush err=%v", err)
		}
	}()

	rep := deps.Run(ctx, cfg, deps.Loader)
	if rep.Err != nil {
		log.Printf("xlsxloader: stage=%s exit=%d err=%v", rep.Stage, rep.ExitCode, rep.Err)
	}
	return rep.ExitCode
}

// setupMetrics installs the backend selected by cfg.MetricsBackend.
func setupMetrics(cfg *config.Config) error {
	switch strings.ToLower(cfg.MetricsBackend) {
	case "prompush":
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.StatsdAddr,
			Namespace: "xlsxloader.",
			Tags:      []string{"job:" + cfg.Job},
		})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	}
	return nil
}

func main() {
	fs := flag.NewFlagSet("xlsxloader", flag.ContinueOnError)
	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(loader.ExitOK)
		}
		log.Printf("config: %v", err)
		os.Exit(loader.ExitConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, defaultDeps())
	stop()
	os.Exit(code)
}
