package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuotePull/internal/domain/models"
)

// chServer stands in for a ClickHouse table behind database/sql. It answers
// the key lookup from stored and records every appended row.
type chServer struct {
	mu        sync.Mutex
	stored    [][2]driver.Value
	queries   []string
	lookup    []driver.Value
	lookupErr error
	appended  [][]driver.Value
	appendErr error
	failAt    int
	begins    int
	commits   int
	rollbacks int
}

var (
	chServersMu sync.Mutex
	chServers   = map[string]*chServer{}
)

func init() {
	sql.Register("chfake", chDriver{})
}

func openCHFake(t *testing.T, srv *chServer) *sql.DB {
	t.Helper()
	chServersMu.Lock()
	chServers[t.Name()] = srv
	chServersMu.Unlock()

	db, err := sql.Open("chfake", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		chServersMu.Lock()
		delete(chServers, t.Name())
		chServersMu.Unlock()
	})
	return db
}

type chDriver struct{}

func (chDriver) Open(name string) (driver.Conn, error) {
	chServersMu.Lock()
	defer chServersMu.Unlock()
	srv, ok := chServers[name]
	if !ok {
		return nil, errors.New("unknown fake server " + name)
	}
	return &chConn{srv: srv}, nil
}

type chConn struct{ srv *chServer }

func (c *chConn) Prepare(query string) (driver.Stmt, error) {
	return &chStmt{srv: c.srv, query: query}, nil
}

func (c *chConn) Close() error { return nil }

func (c *chConn) Begin() (driver.Tx, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.srv.begins++
	return &chTx{srv: c.srv}, nil
}

type chTx struct{ srv *chServer }

func (tx *chTx) Commit() error {
	tx.srv.mu.Lock()
	defer tx.srv.mu.Unlock()
	tx.srv.commits++
	return nil
}

func (tx *chTx) Rollback() error {
	tx.srv.mu.Lock()
	defer tx.srv.mu.Unlock()
	tx.srv.rollbacks++
	return nil
}

type chStmt struct {
	srv   *chServer
	query string
}

func (s *chStmt) Close() error  { return nil }
func (s *chStmt) NumInput() int { return -1 }

func (s *chStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	s.srv.queries = append(s.srv.queries, s.query)
	if s.srv.appendErr != nil && len(s.srv.appended)+1 == s.srv.failAt {
		return nil, s.srv.appendErr
	}
	s.srv.appended = append(s.srv.appended, args)
	return driver.RowsAffected(1), nil
}

func (s *chStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	s.srv.queries = append(s.srv.queries, s.query)
	s.srv.lookup = args
	if s.srv.lookupErr != nil {
		return nil, s.srv.lookupErr
	}
	return &chRows{keys: s.srv.stored}, nil
}

type chRows struct {
	keys [][2]driver.Value
	i    int
}

func (r *chRows) Columns() []string { return []string{"symbol", "timestamp"} }
func (r *chRows) Close() error      { return nil }

func (r *chRows) Next(dest []driver.Value) error {
	if r.i >= len(r.keys) {
		return io.EOF
	}
	dest[0], dest[1] = r.keys[r.i][0], r.keys[r.i][1]
	r.i++
	return nil
}

func storedKey(sym string, day int) [2]driver.Value {
	return [2]driver.Value{sym, time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)}
}

func TestClickHouseQuoteStoreAppendsOnlyMissingRows(t *testing.T) {
	srv := &chServer{stored: [][2]driver.Value{storedKey("IBM", 4)}}
	store := NewClickHouseQuoteStore(openCHFake(t, srv), "stock_quotes")

	n, err := store.WriteBatch(context.Background(), []models.QuoteRow{
		row("IBM", 4, 10, 100),
		row("IBM", 5, 11, 110),
		row("MSFT", 5, 20, 200),
		row("IBM", 5, 99, 999),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, srv.appended, 2)
	assert.Equal(t, []driver.Value{"IBM", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 10.0, 12.0, 9.0, 11.0, int64(110)}, srv.appended[0])
	assert.Equal(t, "MSFT", srv.appended[1][0])
	assert.Equal(t, 1, srv.begins)
	assert.Equal(t, 1, srv.commits)
	assert.Zero(t, srv.rollbacks)

	require.Len(t, srv.lookup, 4)
	assert.ElementsMatch(t, []driver.Value{"IBM", "MSFT"}, srv.lookup[:2])
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), srv.lookup[2])
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), srv.lookup[3])
	assert.True(t, strings.HasPrefix(srv.queries[0], "SELECT symbol, timestamp FROM stock_quotes WHERE symbol IN (?, ?)"))
	assert.Equal(t, "INSERT INTO stock_quotes (symbol, timestamp, open, high, low, close, volume)", srv.queries[1])
}

func TestClickHouseQuoteStoreAllExistingOpensNoTransaction(t *testing.T) {
	srv := &chServer{stored: [][2]driver.Value{storedKey("IBM", 4), storedKey("IBM", 5)}}
	store := NewClickHouseQuoteStore(openCHFake(t, srv), "stock_quotes")

	n, err := store.WriteBatch(context.Background(), []models.QuoteRow{
		row("IBM", 4, 10, 100),
		row("IBM", 5, 11, 110),
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, srv.begins)
	assert.Empty(t, srv.appended)
}

func TestClickHouseQuoteStoreRollsBackOnAppendError(t *testing.T) {
	cause := errors.New("code: 241, memory limit exceeded")
	srv := &chServer{appendErr: cause, failAt: 2}
	store := NewClickHouseQuoteStore(openCHFake(t, srv), "stock_quotes")

	n, err := store.WriteBatch(context.Background(), []models.QuoteRow{
		row("IBM", 4, 10, 100),
		row("IBM", 5, 11, 110),
	})
	assert.Zero(t, n)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "clickhouse", perr.Backend)
	assert.Equal(t, "append", perr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, srv.rollbacks)
	assert.Zero(t, srv.commits)
}

func TestClickHouseQuoteStoreLookupError(t *testing.T) {
	srv := &chServer{lookupErr: errors.New("table stock_quotes doesn't exist")}
	store := NewClickHouseQuoteStore(openCHFake(t, srv), "stock_quotes")

	_, err := store.WriteBatch(context.Background(), []models.QuoteRow{row("IBM", 4, 10, 100)})

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "lookup", perr.Op)
	assert.Zero(t, srv.begins)
}

func TestClickHouseQuoteStoreEmptyBatchTouchesNothing(t *testing.T) {
	srv := &chServer{}
	store := NewClickHouseQuoteStore(openCHFake(t, srv), "stock_quotes")

	n, err := store.WriteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, srv.queries)
}
