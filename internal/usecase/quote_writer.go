package usecase

import (
	"context"
	"errors"
	"time"

	"QuotePull/internal/domain/models"
	drepo "QuotePull/internal/domain/repository"
	"QuotePull/internal/repository"
	"QuotePull/pkg/logger"
)

// WriteResult reports what a single Write did.
type WriteResult struct {
	Skipped   bool
	Attempted int
	Inserted  int64
	Err       *repository.PersistenceError
}

// QuoteWriter is the only place rows reach the store. It never returns an
// error; failures are logged and reported in WriteResult.
type QuoteWriter struct {
	store   drepo.QuoteStore
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewQuoteWriter(store drepo.QuoteStore, metrics drepo.Metrics, log *logger.Logger) *QuoteWriter {
	if log == nil {
		log = logger.Nop()
	}
	return &QuoteWriter{store: store, metrics: metrics, log: log}
}

// Write persists rows in one transaction. An empty slice is a no-op.
func (w *QuoteWriter) Write(ctx context.Context, rows []models.QuoteRow) WriteResult {
	if len(rows) == 0 {
		w.log.Info("no rows to insert")
		return WriteResult{Skipped: true}
	}

	res := WriteResult{Attempted: len(rows)}
	start := time.Now()
	n, err := w.store.WriteBatch(ctx, rows)
	if w.metrics != nil {
		w.metrics.RecordLatency("write", time.Since(start))
	}

	if err != nil {
		var pe *repository.PersistenceError
		if !errors.As(err, &pe) {
			pe = &repository.PersistenceError{Backend: "unknown", Op: "write", Err: err}
		}
		res.Err = pe
		w.log.Error("write failed, batch rolled back",
			logger.Int("rows", len(rows)),
			logger.String("op", pe.Op),
			logger.Error(pe.Err))
		if w.metrics != nil {
			w.metrics.RecordError("persistence")
		}
		return res
	}

	res.Inserted = n
	w.log.Info("rows written",
		logger.Int("attempted", len(rows)),
		logger.Int64("inserted", n),
		logger.Int64("ignored", int64(len(rows))-n))
	if w.metrics != nil {
		w.metrics.RecordRows("written", int(n))
		w.metrics.RecordRows("ignored", len(rows)-int(n))
	}
	return res
}
