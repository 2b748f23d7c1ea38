package usecase

import (
	"context"
	"time"

	"QuotePull/internal/domain/models"
	drepo "QuotePull/internal/domain/repository"
	"QuotePull/internal/service/alphavantage"
	"QuotePull/internal/service/ratelimit"
	"QuotePull/pkg/logger"
)

const pushTimeout = 10 * time.Second

// SymbolOutcome is the per-symbol line of a RunReport.
type SymbolOutcome struct {
	Symbol  models.Symbol
	Kept    int
	Skipped int
	Err     error
}

// RunReport summarizes one run. LockHeld means another run owns the lock;
// LockErr means the lock could not be checked at all.
type RunReport struct {
	Symbols  []SymbolOutcome
	Write    WriteResult
	LockHeld bool
	LockErr  error
	Canceled bool
	Duration time.Duration
}

// Rows is the number of rows handed to the writer.
func (r RunReport) Rows() int {
	n := 0
	for _, s := range r.Symbols {
		n += s.Kept
	}
	return n
}

// QuoteCollector runs fetch, normalize and store for every configured symbol.
type QuoteCollector struct {
	symbols    []models.Symbol
	source     drepo.QuoteSource
	normalizer *Normalizer
	writer     *QuoteWriter
	pacer      *ratelimit.Pacer
	locker     drepo.RunLocker
	metrics    drepo.Metrics
	log        *logger.Logger
}

// NewQuoteCollector creates a collector. locker and metrics may be nil.
func NewQuoteCollector(
	symbols []string,
	source drepo.QuoteSource,
	normalizer *Normalizer,
	writer *QuoteWriter,
	pacer *ratelimit.Pacer,
	locker drepo.RunLocker,
	metrics drepo.Metrics,
	log *logger.Logger,
) *QuoteCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &QuoteCollector{
		symbols:    models.NormalizeSymbols(symbols),
		source:     source,
		normalizer: normalizer,
		writer:     writer,
		pacer:      pacer,
		locker:     locker,
		metrics:    metrics,
		log:        log,
	}
}

// Run performs exactly one pass over the symbol list and one write. It does
// not return an error: fetch and write failures are logged and reported.
func (c *QuoteCollector) Run(ctx context.Context) RunReport {
	start := time.Now()
	var report RunReport

	if c.locker != nil {
		ok, err := c.locker.TryLock(ctx)
		if err != nil {
			c.log.Error("run lock unavailable, skipping run", logger.Error(err))
			c.recordError("lock")
			report.LockErr = err
			return report
		}
		if !ok {
			c.log.Warn("another run holds the lock, skipping run")
			report.LockHeld = true
			return report
		}
		defer func() {
			if err := c.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				c.log.Warn("release run lock", logger.Error(err))
			}
		}()
	}

	c.log.Info("run started", logger.Int("symbols", len(c.symbols)))
	c.pacer.Reset()

	var batch models.RunBatch
	for _, sym := range c.symbols {
		if err := c.pacer.Wait(ctx); err != nil {
			report.Canceled = true
			break
		}

		outcome := c.collect(ctx, sym)
		report.Symbols = append(report.Symbols, outcome.SymbolOutcome)
		batch = append(batch, outcome.rows...)
	}

	if report.Canceled || ctx.Err() != nil {
		report.Canceled = true
		c.log.Warn("run canceled, batch discarded", logger.Int("rows", len(batch)))
	} else {
		report.Write = c.writer.Write(ctx, batch)
	}

	report.Duration = time.Since(start)
	c.log.Info("run finished",
		logger.Int("rows", len(batch)),
		logger.Int64("inserted", report.Write.Inserted),
		logger.Duration("duration", report.Duration))
	c.finish(ctx, report.Duration)
	return report
}

type collected struct {
	SymbolOutcome
	rows []models.QuoteRow
}

func (c *QuoteCollector) collect(ctx context.Context, sym models.Symbol) collected {
	out := collected{SymbolOutcome: SymbolOutcome{Symbol: sym}}

	series, err := c.source.Fetch(ctx, sym)
	if err != nil {
		out.Err = err
		c.log.Error("no data for symbol",
			logger.String("symbol", string(sym)),
			logger.String("kind", string(alphavantage.KindOf(err))),
			logger.Error(err))
		c.recordSymbol(sym, "failed")
		return out
	}

	rows, stats := c.normalizer.Normalize(sym, series)
	out.rows = rows
	out.Kept = stats.Kept
	out.Skipped = stats.Skipped
	if c.metrics != nil {
		c.metrics.RecordRows("normalized", stats.Kept)
		c.metrics.RecordRows("skipped", stats.Skipped)
	}
	c.recordSymbol(sym, "ok")
	return out
}

func (c *QuoteCollector) finish(ctx context.Context, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordLatency("run", d)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := c.metrics.Push(pctx); err != nil {
		c.log.Warn("push metrics", logger.Error(err))
	}
}

func (c *QuoteCollector) recordSymbol(sym models.Symbol, result string) {
	if c.metrics != nil {
		c.metrics.RecordSymbol(string(sym), result)
	}
}

func (c *QuoteCollector) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}
