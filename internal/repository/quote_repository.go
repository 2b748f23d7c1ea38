package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"QuotePull/internal/domain/models"
	drepo "QuotePull/internal/domain/repository"
)

// quoteColumns is the fixed column order of stock_quotes.
var quoteColumns = []string{"symbol", "timestamp", "open", "high", "low", "close", "volume"}

const DefaultChunkSize = 500

// PersistenceError is any connect, insert or commit failure. Nothing from the
// batch is committed when one is returned.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Dialect captures the placeholder syntax of a driver.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	SQLite   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
)

// SQLQuoteStore writes rows with INSERT ... ON CONFLICT DO NOTHING. It relies
// on a unique (symbol, timestamp) constraint in the target table.
type SQLQuoteStore struct {
	db        *sql.DB
	table     string
	dialect   Dialect
	chunkSize int
}

var _ drepo.QuoteStore = (*SQLQuoteStore)(nil)

// NewSQLQuoteStore creates a conflict-ignoring store on db. chunkSize caps the
// rows per statement so bind parameters stay under driver limits.
func NewSQLQuoteStore(db *sql.DB, table string, dialect Dialect, chunkSize int) *SQLQuoteStore {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &SQLQuoteStore{db: db, table: table, dialect: dialect, chunkSize: chunkSize}
}

// WriteBatch inserts rows on one connection inside one transaction.
func (s *SQLQuoteStore) WriteBatch(ctx context.Context, rows []models.QuoteRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, s.fail("connect", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.fail("begin", err)
	}

	var inserted int64
	for start := 0; start < len(rows); start += s.chunkSize {
		end := min(start+s.chunkSize, len(rows))
		q, args := s.buildInsert(rows[start:end])
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, s.fail("insert", errors.Join(err, tx.Rollback()))
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.fail("commit", err)
	}
	return inserted, nil
}

func (s *SQLQuoteStore) buildInsert(rows []models.QuoteRow) (string, []interface{}) {
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*len(quoteColumns))
	n := 0
	for _, r := range rows {
		ph := make([]string, len(quoteColumns))
		for i := range ph {
			n++
			ph[i] = s.dialect.Placeholder(n)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, string(r.Symbol), r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT DO NOTHING",
		quoteIdent(s.table), columnList(), strings.Join(values, ", "))
	return q, args
}

func (s *SQLQuoteStore) fail(op string, err error) error {
	return &PersistenceError{Backend: s.dialect.Name, Op: op, Err: err}
}

func columnList() string {
	cols := make([]string, len(quoteColumns))
	for i, c := range quoteColumns {
		cols[i] = quoteIdent(c)
	}
	return strings.Join(cols, ", ")
}

// quoteIdent double-quotes each dot separated part of an identifier.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
