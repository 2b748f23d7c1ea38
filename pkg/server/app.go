package server

import (
	"context"

	"QuotePull/internal/usecase"
	"QuotePull/pkg/config"
	applogger "QuotePull/pkg/logger"
)

// App encapsulates one invocation of the job.
type App struct {
	cfg       *config.Config
	collector *usecase.QuoteCollector
	log       *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, collector *usecase.QuoteCollector, log *applogger.Logger) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, collector: collector, log: log}
}

// Run performs a single collection run and returns its report. Fetch and
// write failures are reported, not returned; the scheduler only sees the
// process exit status.
func (a *App) Run(ctx context.Context) usecase.RunReport {
	a.log.Info("starting run",
		applogger.String("backend", a.cfg.Storage.Backend),
		applogger.Strings("symbols", a.cfg.Symbols),
		applogger.Bool("run_lock", a.cfg.Redis.Enabled))

	report := a.collector.Run(ctx)

	failed := 0
	for _, s := range report.Symbols {
		if s.Err != nil {
			failed++
		}
	}
	switch {
	case report.LockErr != nil:
		a.log.Error("run skipped, lock unavailable", applogger.Error(report.LockErr))
	case report.LockHeld:
		a.log.Info("run skipped, another run holds the lock")
	case report.Canceled:
		a.log.Warn("run interrupted")
	default:
		a.log.Info("run complete",
			applogger.Int("symbols", len(report.Symbols)),
			applogger.Int("failed_symbols", failed),
			applogger.Int("rows", report.Rows()),
			applogger.Int64("inserted", report.Write.Inserted),
			applogger.Bool("write_failed", report.Write.Err != nil))
	}
	return report
}
