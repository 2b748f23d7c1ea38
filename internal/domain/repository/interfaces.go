//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks QuoteSource,QuoteStore,RunLocker

package repository

import (
	"context"
	"time"

	"QuotePull/internal/domain/models"
)

// QuoteSource fetches the raw daily series for one symbol. A nil series with
// a non-nil error means "no data for this symbol"; callers move on.
type QuoteSource interface {
	Fetch(ctx context.Context, symbol models.Symbol) (models.RawQuoteSeries, error)
}

// QuoteStore persists rows with insert-or-ignore semantics on (symbol, timestamp).
// WriteBatch commits all rows or none and reports how many were new.
type QuoteStore interface {
	WriteBatch(ctx context.Context, rows []models.QuoteRow) (int64, error)
}

// RunLocker guards against overlapping runs.
type RunLocker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type Metrics interface {
	RecordFetchAttempt(outcome string)
	RecordSymbol(symbol string, result string)
	RecordRows(stage string, n int)
	RecordError(kind string)
	RecordLatency(op string, d time.Duration)
	Push(ctx context.Context) error
}
