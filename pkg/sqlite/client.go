package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Client wraps a SQLite database file.
type Client struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	return &Client{db: db}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Exec runs schema statements in order. Used by local setups and tests; the
// production schema is managed outside this program.
func (c *Client) Exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite exec: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	return c.db.Close()
}
