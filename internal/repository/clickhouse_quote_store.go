package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuotePull/internal/domain/models"
	drepo "QuotePull/internal/domain/repository"
)

// ClickHouseQuoteStore emulates insert-or-ignore on ClickHouse, which has no
// conflict clause: existing (symbol, timestamp) keys are read first and only
// missing rows are appended. The append is one batch, sent on commit.
type ClickHouseQuoteStore struct {
	db    *sql.DB
	table string
}

var _ drepo.QuoteStore = (*ClickHouseQuoteStore)(nil)

// NewClickHouseQuoteStore creates ClickHouse storage.
func NewClickHouseQuoteStore(db *sql.DB, table string) *ClickHouseQuoteStore {
	return &ClickHouseQuoteStore{db: db, table: table}
}

func (s *ClickHouseQuoteStore) WriteBatch(ctx context.Context, rows []models.QuoteRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, s.fail("connect", err)
	}
	defer conn.Close()

	existing, err := s.existingKeys(ctx, conn, rows)
	if err != nil {
		return 0, s.fail("lookup", err)
	}
	fresh := missingRows(rows, existing)
	if len(fresh) == 0 {
		return 0, nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.fail("begin", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s)", s.table, strings.Join(quoteColumns, ", "))
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, s.fail("prepare", err)
	}
	defer stmt.Close()

	for _, r := range fresh {
		if _, err := stmt.ExecContext(ctx, string(r.Symbol), r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume); err != nil {
			_ = tx.Rollback()
			return 0, s.fail("append", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.fail("commit", err)
	}
	return int64(len(fresh)), nil
}

func (s *ClickHouseQuoteStore) existingKeys(ctx context.Context, conn *sql.Conn, rows []models.QuoteRow) (map[string]struct{}, error) {
	symbols := make(map[models.Symbol]struct{})
	from, to := rows[0].Timestamp, rows[0].Timestamp
	for _, r := range rows {
		symbols[r.Symbol] = struct{}{}
		if r.Timestamp.Before(from) {
			from = r.Timestamp
		}
		if r.Timestamp.After(to) {
			to = r.Timestamp
		}
	}

	ph := make([]string, 0, len(symbols))
	args := make([]interface{}, 0, len(symbols)+2)
	for sym := range symbols {
		ph = append(ph, "?")
		args = append(args, string(sym))
	}
	args = append(args, from, to)

	q := fmt.Sprintf("SELECT symbol, timestamp FROM %s WHERE symbol IN (%s) AND timestamp >= ? AND timestamp <= ?",
		s.table, strings.Join(ph, ", "))
	res, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	keys := make(map[string]struct{})
	for res.Next() {
		var (
			sym string
			ts  time.Time
		)
		if err := res.Scan(&sym, &ts); err != nil {
			return nil, err
		}
		keys[rowKey(models.Symbol(sym), ts)] = struct{}{}
	}
	return keys, res.Err()
}

// missingRows drops rows already stored and duplicates within the batch.
func missingRows(rows []models.QuoteRow, existing map[string]struct{}) []models.QuoteRow {
	seen := make(map[string]struct{}, len(existing)+len(rows))
	for k := range existing {
		seen[k] = struct{}{}
	}
	out := make([]models.QuoteRow, 0, len(rows))
	for _, r := range rows {
		k := rowKey(r.Symbol, r.Timestamp)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func rowKey(symbol models.Symbol, ts time.Time) string {
	return string(symbol) + "|" + ts.UTC().Format("2006-01-02")
}

func (s *ClickHouseQuoteStore) fail(op string, err error) error {
	return &PersistenceError{Backend: "clickhouse", Op: op, Err: err}
}
