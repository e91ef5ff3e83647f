package changefeed

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

const DefaultBuffer = 256

type sender interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher implements catalog.Notifier. Notify only enqueues, so the
// catalog's write lock is never held across a broker round trip; Run does
// the sending.
type Publisher struct {
	sender  sender
	source  string
	queue   chan Message
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ catalog.Notifier = (*Publisher)(nil)

func NewPublisher(s sender, source string, buffer int, m *metrics.Metrics) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Publisher{
		sender:  s,
		source:  source,
		queue:   make(chan Message, buffer),
		logger:  logger.WithComponent("changefeed-publisher"),
		metrics: m,
	}
}

// Notify queues ev for publishing. When the queue is full the event is
// dropped; peers still converge on their next reload.
func (p *Publisher) Notify(_ context.Context, ev catalog.Event) {
	msg := Message{Op: ev.Op, Name: ev.Name, Modified: ev.Modified, Source: p.source}
	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("change queue full, dropping event", "op", ev.Op, "name", ev.Name)
		p.count("dropped")
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.queue:
			if err := p.sender.Publish(ctx, kafka.Event{Key: msg.Name, Value: msg}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("publishing change event", "op", msg.Op, "name", msg.Name, "error", err)
				p.count("error")
				continue
			}
			p.count("ok")
		}
	}
}

func (p *Publisher) count(status string) {
	if p.metrics == nil {
		return
	}
	p.metrics.ChangeEventsTotal.WithLabelValues("published", status).Inc()
}
