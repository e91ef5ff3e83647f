// Package postgres stores projects as JSONB documents, one row per project
// name.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	pgclient "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/resilience"
)

// opTimeout bounds each write.
const opTimeout = 5 * time.Second

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	client  *pgclient.Client
	table   string
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// New connects with bounded retries, creating the database and table when
// absent.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = "projects"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("table name %q: %w", table, apperrors.ErrInvalidInput)
	}

	var client *pgclient.Client
	err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		Retryable:    func(err error) bool { return !pgclient.IsPermanent(err) },
	}, func() error {
		var err error
		client, err = pgclient.New(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, &apperrors.BackendUnavailableError{
			Backend: "postgres",
			Target:  fmt.Sprintf("%s database %s", cfg.Server(), cfg.Database),
			Remedy: fmt.Sprintf("make sure the server is running and that you have CREATE DATABASE privileges if '%s' does not exist",
				cfg.Database),
			Err: err,
		}
	}

	s := &Store{
		client:  client,
		table:   table,
		breaker: resilience.NewCircuitBreaker("postgres", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "postgres-store", "table", table),
	}
	if err := s.migrate(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		doc JSONB NOT NULL
	)`, pq.QuoteIdentifier(s.table))
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", s.table, err)
		}
		return nil
	})
}

// malformed errors come from row contents, not from the server, so they
// do not count against the breaker.
func malformed(err error) bool {
	return errors.Is(err, apperrors.ErrMalformedRecord)
}

func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	var recs []record.Record
	err := s.breaker.ExecuteIgnoring(func() error {
		rows, err := s.client.DB.QueryContext(ctx,
			fmt.Sprintf(`SELECT name, doc FROM %s ORDER BY name`, pq.QuoteIdentifier(s.table)))
		if err != nil {
			return fmt.Errorf("querying projects: %w", err)
		}
		defer rows.Close()
		recs = recs[:0]
		for rows.Next() {
			var (
				name string
				doc  []byte
			)
			if err := rows.Scan(&name, &doc); err != nil {
				return fmt.Errorf("scanning project row: %w", err)
			}
			rec, err := storage.DecodeDocument(name, doc)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return rows.Err()
	}, malformed)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded projects", "count", len(recs))
	return recs, nil
}

func (s *Store) Save(ctx context.Context, rec record.Record) error {
	doc, err := storage.EncodeDocument(rec)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (name, doc) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc`, pq.QuoteIdentifier(s.table))
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "postgres save", func(ctx context.Context) error {
			if _, err := s.client.DB.ExecContext(ctx, stmt, rec.Name(), doc); err != nil {
				return fmt.Errorf("saving project %s: %w", rec.Name(), err)
			}
			return nil
		})
	})
}

func (s *Store) Delete(ctx context.Context, name string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, pq.QuoteIdentifier(s.table))
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "postgres delete", func(ctx context.Context) error {
			if _, err := s.client.DB.ExecContext(ctx, stmt, name); err != nil {
				return fmt.Errorf("deleting project %s: %w", name, err)
			}
			return nil
		})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.breaker.Execute(func() error { return s.client.Ping(ctx) })
}

func (s *Store) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Options declares the factory arguments; defaults match a local server.
var Options = []storage.Option{
	{Name: "host", Default: "localhost", Help: "server host"},
	{Name: "port", Default: "5432", Help: "server port"},
	{Name: "user", Default: "toolbox", Help: "role to connect as"},
	{Name: "password", Default: "", Help: "role password"},
	{Name: "database", Default: "toolbox", Help: "database, created if absent"},
	{Name: "sslmode", Default: "disable", Help: "lib/pq sslmode"},
	{Name: "table", Default: "projects", Help: "table holding the documents"},
}

// ConfigFrom builds a connection config from factory options.
func ConfigFrom(opts storage.Options) (config.PostgresConfig, error) {
	port, err := opts.Int("port")
	if err != nil {
		return config.PostgresConfig{}, err
	}
	return config.PostgresConfig{
		Host:           opts.String("host"),
		Port:           port,
		User:           opts.String("user"),
		Password:       opts.String("password"),
		Database:       opts.String("database"),
		SSLMode:        opts.String("sslmode"),
		Table:          opts.String("table"),
		MaxOpenConns:   10,
		MaxIdleConns:   2,
		ConnectTimeout: 5 * time.Second,
	}, nil
}

// OptionsFrom renders a connection config as factory options.
func OptionsFrom(cfg config.PostgresConfig) map[string]string {
	return map[string]string{
		"host":     cfg.Host,
		"port":     strconv.Itoa(cfg.Port),
		"user":     cfg.User,
		"password": cfg.Password,
		"database": cfg.Database,
		"sslmode":  cfg.SSLMode,
		"table":    cfg.Table,
	}
}

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "postgres",
		Description: "JSONB documents in a PostgreSQL table",
		Options:     Options,
		Open: func(ctx context.Context, opts storage.Options) (storage.Adapter, error) {
			cfg, err := ConfigFrom(opts)
			if err != nil {
				return nil, err
			}
			return New(ctx, cfg)
		},
	}
}

var _ storage.Adapter = (*Store)(nil)
