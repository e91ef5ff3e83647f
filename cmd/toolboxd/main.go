package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/api"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/changefeed"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search/bleve"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/backends"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/file"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/postgres"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/redis"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/resilience"
)

const watchDelay = 250 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("toolbox stopped with error", "error", err)
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
	slog.Info("toolbox stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	checker := health.NewChecker()

	adapter, raw, err := openStorage(ctx, cfg, m)
	if err != nil {
		return err
	}
	if p, ok := raw.(interface{ Ping(context.Context) error }); ok {
		checker.Register("storage", health.PingCheck(p.Ping, true))
	}

	idx, err := openSearch(cfg, m)
	if err != nil {
		_ = adapter.Close()
		return err
	}

	source := changefeed.NewSource()
	opts := []catalog.Option{
		catalog.WithFields(cfg.Catalog.Fields),
		catalog.WithRequired(cfg.Catalog.Required),
		catalog.WithMetrics(m),
	}
	var publisher *changefeed.Publisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = changefeed.NewPublisher(producer, source, changefeed.DefaultBuffer, m)
		opts = append(opts, catalog.WithNotifier(publisher))
	}

	cat, err := catalog.New(ctx, adapter, idx, opts...)
	if err != nil {
		_ = idx.Close()
		_ = adapter.Close()
		return fmt.Errorf("loading catalog: %w", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			slog.Error("closing catalog", "error", err)
		}
	}()
	slog.Info("catalog loaded",
		"backend", cfg.Storage.Backend,
		"search", cfg.Search.Engine,
		"projects", cat.Len(),
		"fields", cat.Fields(),
	)
	checker.Register("catalog", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d projects", cat.Len())}
	})

	if fs, ok := raw.(*file.Store); ok && cfg.Storage.Watch {
		go func() {
			err := fs.Watch(ctx, watchDelay, func() {
				if _, err := cat.Load(ctx); err != nil {
					slog.Error("reloading after directory change", "error", err)
				}
			})
			if err != nil {
				slog.Error("directory watch stopped", "error", err)
			}
		}()
		slog.Info("watching project directory", "dir", fs.Dir())
	}

	if cfg.Kafka.Enabled {
		go func() {
			if err := publisher.Run(ctx); err != nil {
				slog.Error("change publisher stopped", "error", err)
			}
		}()
		reloader := changefeed.NewReloader(cat, source, cfg.Kafka.ReloadDelay, m)
		defer reloader.Stop()
		consumer := kafka.NewConsumer(cfg.Kafka, changefeed.Group(cfg.Kafka.ConsumerGroup, source), reloader.Handle)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("change consumer stopped", "error", err)
			}
		}()
		slog.Info("change feed enabled", "topic", cfg.Kafka.Topic, "source", source)
	}

	mux := http.NewServeMux()
	api.New(cat).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port == cfg.Server.Port {
			mux.Handle("GET /metrics", m.Handler())
		} else {
			shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				_ = shutdownMetrics(shutdownCtx)
			}()
		}
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequireKey(cfg.Server.APIKeyHashes)(chain)
	chain = middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("toolbox listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// openStorage opens the configured backend and returns it instrumented,
// along with the bare store for capability checks. The postgres and redis
// sections of the config seed their backend's options; explicit storage
// options win.
func openStorage(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (storage.Adapter, storage.Adapter, error) {
	factories := backends.Default()
	f, err := backends.Lookup(factories, cfg.Storage.Backend)
	if err != nil {
		return nil, nil, err
	}

	raw := make(map[string]string)
	switch f.Name {
	case "postgres":
		maps.Copy(raw, postgres.OptionsFrom(cfg.Postgres))
	case "redis":
		maps.Copy(raw, redis.OptionsFrom(cfg.Redis))
	}
	maps.Copy(raw, cfg.Storage.Options)

	adapter, err := f.OpenWith(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if b, ok := adapter.(interface{ Breaker() *resilience.CircuitBreaker }); ok {
		gauge := m.CircuitBreakerState
		b.Breaker().Observe(func(name string, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		})
	}
	slog.Info("storage backend opened", "backend", f.Name)
	return storage.Instrument(adapter, f.Name, m), adapter, nil
}

func openSearch(cfg *config.Config, m *metrics.Metrics) (search.Index, error) {
	var inner search.Index
	switch cfg.Search.Engine {
	case "bleve":
		ix, err := bleve.New(cfg.Search.IndexPath)
		if err != nil {
			return nil, err
		}
		inner = ix
	default:
		inner = search.NewMemory()
	}
	if cfg.Search.CacheSize <= 0 {
		return inner, nil
	}
	cached, err := search.NewCached(inner, cfg.Search.CacheSize, m)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}
