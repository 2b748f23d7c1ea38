package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Client owns a lazily connecting PostgreSQL pool. No connection is made
// until the first query.
type Client struct {
	db *sql.DB
}

// NewClient opens a PostgreSQL pool.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            5432,
		SSLMode:         "disable",
		ConnectTimeout:  10 * time.Second,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db, err := sql.Open("postgres", BuildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Client{db: db}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// BuildDSN renders a libpq key/value connection string.
func BuildDSN(cfg ClientConfig) string {
	parts := []string{
		kv("host", cfg.Host),
		kv("port", fmt.Sprint(cfg.Port)),
		kv("user", cfg.User),
		kv("password", cfg.Password),
		kv("dbname", cfg.Database),
		kv("sslmode", cfg.SSLMode),
	}
	if cfg.ConnectTimeout > 0 {
		parts = append(parts, kv("connect_timeout", fmt.Sprint(int(cfg.ConnectTimeout.Seconds()))))
	}
	return strings.Join(parts, " ")
}

func kv(key, value string) string {
	if value == "" {
		return key + "=''"
	}
	if strings.ContainsAny(value, ` '\`) {
		value = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
		return fmt.Sprintf("%s='%s'", key, value)
	}
	return key + "=" + value
}
