package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"QuotePull/internal/domain/models"
	"QuotePull/internal/domain/repository/mocks"
	"QuotePull/internal/repository"
	"QuotePull/pkg/sqlite"
)

const quotesSchema = `CREATE TABLE stock_quotes (
	symbol TEXT NOT NULL,
	"timestamp" DATETIME NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL,
	UNIQUE (symbol, "timestamp")
)`

func newSQLiteStore(t *testing.T) (*repository.SQLQuoteStore, *sqlite.Client) {
	t.Helper()
	c, err := sqlite.Open(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Exec(context.Background(), quotesSchema))
	return repository.NewSQLQuoteStore(c.DB(), "stock_quotes", repository.SQLite, 0), c
}

type fakeMetrics struct {
	mu      sync.Mutex
	rows    map[string]int
	errs    map[string]int
	symbols map[string]string
	pushed  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rows: map[string]int{}, errs: map[string]int{}, symbols: map[string]string{}}
}

func (m *fakeMetrics) RecordFetchAttempt(string) {}

func (m *fakeMetrics) RecordSymbol(symbol, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[symbol] = result
}

func (m *fakeMetrics) RecordRows(stage string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[stage] += n
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *fakeMetrics) RecordLatency(string, time.Duration) {}

func (m *fakeMetrics) Push(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed++
	return nil
}

func failingStore(t *testing.T, err error) *mocks.MockQuoteStore {
	store := mocks.NewMockQuoteStore(gomock.NewController(t))
	store.EXPECT().WriteBatch(gomock.Any(), gomock.Any()).Return(int64(0), err).Times(1)
	return store
}

func quoteRow(sym string, day int) models.QuoteRow {
	return models.QuoteRow{
		Symbol:    models.Symbol(sym),
		Timestamp: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:      1, High: 2, Low: 0.5, Close: 1.5, Volume: 100,
	}
}

func TestQuoteWriterEmptyIsSkipped(t *testing.T) {
	m := newFakeMetrics()
	// no EXPECT: any store call fails the test
	store := mocks.NewMockQuoteStore(gomock.NewController(t))
	res := NewQuoteWriter(store, m, nil).Write(context.Background(), nil)

	assert.True(t, res.Skipped)
	assert.Nil(t, res.Err)
	assert.Empty(t, m.errs)
}

func TestQuoteWriterWritesAndIgnoresDuplicates(t *testing.T) {
	store, _ := newSQLiteStore(t)
	m := newFakeMetrics()
	w := NewQuoteWriter(store, m, nil)
	rows := []models.QuoteRow{quoteRow("IBM", 4), quoteRow("IBM", 5)}

	res := w.Write(context.Background(), rows)
	require.Nil(t, res.Err)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, int64(2), res.Inserted)

	res = w.Write(context.Background(), rows)
	require.Nil(t, res.Err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 2, m.rows["written"])
	assert.Equal(t, 2, m.rows["ignored"])
}

func TestQuoteWriterReportsPersistenceError(t *testing.T) {
	m := newFakeMetrics()
	cause := &repository.PersistenceError{Backend: "sqlite", Op: "commit", Err: errors.New("disk I/O error")}
	res := NewQuoteWriter(failingStore(t, cause), m, nil).Write(context.Background(), []models.QuoteRow{quoteRow("IBM", 4)})

	require.NotNil(t, res.Err)
	assert.Equal(t, "commit", res.Err.Op)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 1, m.errs["persistence"])
}

func TestQuoteWriterWrapsForeignError(t *testing.T) {
	res := NewQuoteWriter(failingStore(t, context.DeadlineExceeded), nil, nil).Write(context.Background(), []models.QuoteRow{quoteRow("IBM", 4)})

	require.NotNil(t, res.Err)
	assert.Equal(t, "write", res.Err.Op)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
