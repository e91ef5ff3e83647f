// Package changefeed carries catalog mutations between instances over
// Kafka. The Publisher forwards committed updates and deletes; the Reloader
// consumes them and refreshes the local catalog from the shared backend.
package changefeed

import (
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
)

// Message is the wire form of one change event.
type Message struct {
	Op       catalog.Op `json:"op"`
	Name     string     `json:"name"`
	Modified float64    `json:"modified,omitempty"`
	Source   string     `json:"source"`
}

// NewSource returns a fresh instance identifier. Each process picks one at
// startup so it can recognise its own events on the topic.
func NewSource() string {
	return uuid.NewString()
}

// Group returns the consumer group for source. Every instance reads the
// whole topic, so groups are never shared.
func Group(prefix, source string) string {
	if prefix == "" {
		return source
	}
	return prefix + "-" + source
}
