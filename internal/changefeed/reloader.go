package changefeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

const (
	DefaultDelay = 500 * time.Millisecond
	loadTimeout  = time.Minute
)

type loader interface {
	Load(ctx context.Context) (int, error)
	Delete(ctx context.Context, name string, opts ...catalog.UpdateOption) (bool, error)
}

// Reloader reacts to change events from other instances. A remote delete
// is applied in memory right away; anything else reloads the catalog from
// its backend, with bursts within delay collapsed into a single load.
type Reloader struct {
	loader  loader
	source  string
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewReloader(l loader, source string, delay time.Duration, m *metrics.Metrics) *Reloader {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Reloader{
		loader:  l,
		source:  source,
		delay:   delay,
		logger:  logger.WithComponent("changefeed-reloader"),
		metrics: m,
	}
}

// Handle is a kafka.MessageHandler. Malformed messages are logged and
// committed so they are not redelivered.
func (r *Reloader) Handle(ctx context.Context, key, value []byte) error {
	msg, err := kafka.DecodeJSON[Message](value)
	if err != nil || msg.Name == "" {
		r.logger.Warn("ignoring malformed change event", "key", string(key), "error", err)
		r.count("malformed")
		return nil
	}
	if msg.Source == r.source {
		r.count("own")
		return nil
	}
	r.logger.Debug("change event received", "op", msg.Op, "name", msg.Name, "source", msg.Source)
	r.count("accepted")
	if msg.Op == catalog.OpDelete {
		r.remove(ctx, msg.Name)
		return nil
	}
	r.schedule()
	return nil
}

func (r *Reloader) remove(ctx context.Context, name string) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	removed, err := r.loader.Delete(ctx, name, catalog.AsLoad())
	if err != nil {
		r.logger.Error("applying remote delete", "name", name, "error", err)
		return
	}
	r.logger.Info("project removed after remote delete", "name", name, "removed", removed)
}

func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Reset(r.delay)
		return
	}
	r.timer = time.AfterFunc(r.delay, r.reload)
}

func (r *Reloader) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	n, err := r.loader.Load(ctx)
	if err != nil {
		r.logger.Error("reloading catalog", "error", err)
		return
	}
	r.logger.Info("catalog reloaded after remote change", "applied", n)
}

// Stop cancels any pending reload. Events handled afterwards are ignored.
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Reloader) count(status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ChangeEventsTotal.WithLabelValues("received", status).Inc()
}
