package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuotePull/internal/domain/models"
	"QuotePull/pkg/sqlite"
)

const testSchema = `CREATE TABLE stock_quotes (
	symbol TEXT NOT NULL,
	"timestamp" DATETIME NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL CHECK (volume >= 0),
	UNIQUE (symbol, "timestamp")
)`

func openTestDB(t *testing.T) *sqlite.Client {
	t.Helper()
	c, err := sqlite.Open(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Exec(context.Background(), testSchema))
	return c
}

func row(sym string, day int, close float64, volume int64) models.QuoteRow {
	return models.QuoteRow{
		Symbol:    models.Symbol(sym),
		Timestamp: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Volume:    volume,
	}
}

func countRows(t *testing.T, c *sqlite.Client) int {
	t.Helper()
	var n int
	require.NoError(t, c.DB().QueryRow(`SELECT COUNT(*) FROM stock_quotes`).Scan(&n))
	return n
}

func TestSQLQuoteStoreWriteIsIdempotent(t *testing.T) {
	c := openTestDB(t)
	store := NewSQLQuoteStore(c.DB(), "stock_quotes", SQLite, 2)
	ctx := context.Background()
	batch := []models.QuoteRow{row("IBM", 8, 154.5, 1400), row("IBM", 5, 153.5, 1300), row("IBM", 4, 152.5, 1200)}

	n, err := store.WriteBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.WriteBatch(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, countRows(t, c))
}

func TestSQLQuoteStoreNeverOverwrites(t *testing.T) {
	c := openTestDB(t)
	store := NewSQLQuoteStore(c.DB(), "stock_quotes", SQLite, 0)
	ctx := context.Background()

	_, err := store.WriteBatch(ctx, []models.QuoteRow{row("IBM", 8, 100, 1)})
	require.NoError(t, err)
	_, err = store.WriteBatch(ctx, []models.QuoteRow{row("IBM", 8, 999, 1), row("AAPL", 8, 180, 2)})
	require.NoError(t, err)

	var close float64
	require.NoError(t, c.DB().QueryRow(`SELECT close FROM stock_quotes WHERE symbol = 'IBM'`).Scan(&close))
	assert.Equal(t, 100.0, close)
	assert.Equal(t, 2, countRows(t, c))
}

func TestSQLQuoteStoreEmptyBatchTouchesNothing(t *testing.T) {
	c := openTestDB(t)
	require.NoError(t, c.Close())

	// a closed pool would fail any operation
	n, err := NewSQLQuoteStore(c.DB(), "stock_quotes", SQLite, 0).WriteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLQuoteStoreRollsBackWholeBatch(t *testing.T) {
	c := openTestDB(t)
	store := NewSQLQuoteStore(c.DB(), "stock_quotes", SQLite, 1)

	// first chunk succeeds, second violates the CHECK constraint
	_, err := store.WriteBatch(context.Background(), []models.QuoteRow{row("IBM", 8, 154.5, 1400), row("IBM", 5, 153.5, -1)})

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert", pe.Op)
	assert.Zero(t, countRows(t, c))
	assert.Zero(t, c.DB().Stats().InUse)
}

func TestSQLQuoteStoreMissingTable(t *testing.T) {
	c := openTestDB(t)
	store := NewSQLQuoteStore(c.DB(), "no_such_table", SQLite, 0)

	_, err := store.WriteBatch(context.Background(), []models.QuoteRow{row("IBM", 8, 1, 1)})

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Zero(t, c.DB().Stats().InUse)
}

func TestBuildInsertPostgresPlaceholders(t *testing.T) {
	store := NewSQLQuoteStore(nil, "public.stock_quotes", Postgres, 0)
	q, args := store.buildInsert([]models.QuoteRow{row("IBM", 8, 1, 1), row("IBM", 5, 1, 1)})

	assert.True(t, strings.HasPrefix(q, `INSERT INTO "public"."stock_quotes" ("symbol", "timestamp", "open", "high", "low", "close", "volume") VALUES ($1, $2, $3, $4, $5, $6, $7), ($8,`))
	assert.True(t, strings.HasSuffix(q, "($8, $9, $10, $11, $12, $13, $14) ON CONFLICT DO NOTHING"))
	assert.Len(t, args, 14)
}

func TestMissingRows(t *testing.T) {
	existing := map[string]struct{}{rowKey("IBM", row("IBM", 8, 0, 0).Timestamp): {}}
	got := missingRows([]models.QuoteRow{row("IBM", 8, 1, 1), row("IBM", 5, 1, 1), row("IBM", 5, 2, 2)}, existing)

	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Timestamp.Day())
	assert.Equal(t, 1.0, got[0].Close)
}
