// Package postgres wraps a lib/pq connection pool and knows how to create
// the configured database when it does not exist yet.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/config"
)

// MaintenanceDB is the database connected to when creating others.
const MaintenanceDB = "postgres"

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

// New opens a pool on cfg.Database, creating the database first if it is
// missing, and verifies it with a ping.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	if err := EnsureDatabase(ctx, cfg); err != nil {
		return nil, err
	}
	db, err := open(ctx, cfg.DSN(), cfg)
	if err != nil {
		return nil, err
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func open(ctx context.Context, dsn string, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// EnsureDatabase creates cfg.Database through the maintenance database when
// it does not exist.
func EnsureDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	db, err := open(ctx, cfg.DSNFor(MaintenanceDB), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.Database,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking database %s: %w", cfg.Database, err)
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.Database))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
		// duplicate_database: created concurrently by another instance
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating database %s: %w", cfg.Database, err)
	}
	return nil
}

// IsPermanent reports errors no retry can fix: bad credentials, missing
// privileges, or an invalid catalog name.
func IsPermanent(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "28", "42":
		return true
	}
	return false
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
