// Package redis stores projects as fields of a single Redis hash.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/resilience"
)

const (
	DefaultKey = "toolbox:projects"
	opTimeout  = 5 * time.Second
)

type Store struct {
	client  *pkgredis.Client
	key     string
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	var client *pkgredis.Client
	err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
	}, func() error {
		var err error
		client, err = pkgredis.NewClient(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, &apperrors.BackendUnavailableError{
			Backend: "redis",
			Target:  cfg.Addr,
			Remedy:  "make sure the server is running and the password is correct",
			Err:     err,
		}
	}
	return &Store{
		client:  client,
		key:     key,
		breaker: resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "redis-store", "key", key),
	}, nil
}

// Load returns the hash's projects ordered by name.
func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	var fields map[string]string
	err := s.breaker.Execute(func() error {
		var err error
		fields, err = s.client.HGetAll(ctx, s.key)
		if err != nil {
			return fmt.Errorf("reading hash %s: %w", s.key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	recs := make([]record.Record, 0, len(names))
	for _, name := range names {
		rec, err := storage.DecodeDocument(s.key+"/"+name, []byte(fields[name]))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	s.logger.Info("loaded projects", "count", len(recs))
	return recs, nil
}

func (s *Store) Save(ctx context.Context, rec record.Record) error {
	doc, err := storage.EncodeDocument(rec)
	if err != nil {
		return err
	}
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "redis save", func(ctx context.Context) error {
			if err := s.client.HSet(ctx, s.key, rec.Name(), doc); err != nil {
				return fmt.Errorf("saving project %s: %w", rec.Name(), err)
			}
			return nil
		})
	})
}

func (s *Store) Delete(ctx context.Context, name string) error {
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "redis delete", func(ctx context.Context) error {
			if err := s.client.HDel(ctx, s.key, name); err != nil {
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

var Options = []storage.Option{
	{Name: "addr", Default: "localhost:6379", Help: "server host:port"},
	{Name: "password", Default: "", Help: "AUTH password"},
	{Name: "db", Default: "0", Help: "database number"},
	{Name: "key", Default: DefaultKey, Help: "hash holding the documents"},
}

func ConfigFrom(opts storage.Options) (config.RedisConfig, error) {
	db, err := opts.Int("db")
	if err != nil {
		return config.RedisConfig{}, err
	}
	return config.RedisConfig{
		Addr:           opts.String("addr"),
		Password:       opts.String("password"),
		DB:             db,
		PoolSize:       10,
		Key:            opts.String("key"),
		ConnectTimeout: 5 * time.Second,
	}, nil
}

func OptionsFrom(cfg config.RedisConfig) map[string]string {
	return map[string]string{
		"addr":     cfg.Addr,
		"password": cfg.Password,
		"db":       fmt.Sprint(cfg.DB),
		"key":      cfg.Key,
	}
}

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "redis",
		Description: "JSON documents in a Redis hash",
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
