// internal/event/nats.go
// Package event provides NATS JetStream implementation for event publishing.
// It streams order and catalog events to support downstream analytics and
// fulfillment tooling.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/novamarket/novamarket-go/internal/model"
)

// Publisher interface defines the event publishing operations required by the NovaMarket service.
// It provides methods for publishing order, catalog, and request-board events.
type Publisher interface {
	// Order events
	PublishOrderCompleted(ctx context.Context, order model.Order) error

	// Catalog events
	PublishProductSaved(ctx context.Context, product model.Product) error
	PublishProductDeleted(ctx context.Context, productID string) error

	// Request board events
	PublishRequestSubmitted(ctx context.Context, request model.ProductRequest) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not configured.
// It implements all Publisher methods but does nothing, allowing the service
// to function without event streaming when NATS is not available.
type noop struct{}

// Close implements Publisher
// It does nothing and always returns nil.
func (n *noop) Close() error { return nil }

func (n *noop) PublishOrderCompleted(ctx context.Context, order model.Order) error { return nil }

func (n *noop) PublishProductSaved(ctx context.Context, product model.Product) error { return nil }

func (n *noop) PublishProductDeleted(ctx context.Context, productID string) error { return nil }

func (n *noop) PublishRequestSubmitted(ctx context.Context, request model.ProductRequest) error {
	return nil
}

// NewNoop returns the no-op publisher directly, for tests and dev wiring.
func NewNoop() Publisher { return &noop{} }

// natsPub is the NATS JetStream implementation of Publisher.
// It connects to a NATS server and publishes events to JetStream streams.
type natsPub struct {
	nc *nats.Conn            // NATS connection
	js nats.JetStreamContext // JetStream context for stream operations

	// Deduplication fields
	orderDedup   map[string]time.Time // Map of order IDs to last publish time
	catalogDedup map[string]time.Time // Map of product IDs to last publish time
	mutex        sync.RWMutex         // Mutex for thread-safe access to dedup maps
}

// NewPublisherFromEnv creates a new publisher based on environment configuration.
// It reads the NOVA_NATS_URL environment variable to determine if NATS should be used.
// If NATS is not configured or connection fails, it returns a no-op publisher.
// Returns:
//   - Publisher: Either a NATS publisher or a no-op publisher
func NewPublisherFromEnv() Publisher {
	// Check if NATS is configured
	url := os.Getenv("NOVA_NATS_URL")
	if url == "" {
		return &noop{}
	}

	// Connect to NATS server
	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	// Create JetStream context for stream operations
	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	// Initialize required streams
	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{
		nc:           nc,
		js:           js,
		orderDedup:   make(map[string]time.Time),
		catalogDedup: make(map[string]time.Time),
	}
}

// initStreams initializes the required NATS streams.
// It creates the NOVA_ORDERS and NOVA_CATALOG streams with appropriate
// configurations.
func initStreams(js nats.JetStreamContext) error {
	// Create NOVA_ORDERS stream for purchase events
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "NOVA_ORDERS",              // Stream name
		Subjects:  []string{"nova.orders.*"},  // Subjects pattern for order events
		Retention: nats.LimitsPolicy,          // Retention policy
		MaxAge:    24 * time.Hour,             // Keep events for 24 hours
		Discard:   nats.DiscardOld,            // Discard old messages when limits reached
		Storage:   nats.FileStorage,           // Use file storage for persistence
	})
	if err != nil {
		return fmt.Errorf("failed to create NOVA_ORDERS stream: %w", err)
	}

	// Create NOVA_CATALOG stream for catalog and request-board events
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      "NOVA_CATALOG",             // Stream name
		Subjects:  []string{"nova.catalog.*", "nova.requests.*"}, // Subjects pattern
		Retention: nats.LimitsPolicy,          // Retention policy
		MaxAge:    24 * time.Hour,             // Keep events for 24 hours
		Discard:   nats.DiscardOld,            // Discard old messages when limits reached
		Storage:   nats.FileStorage,           // Use file storage for persistence
	})
	if err != nil {
		return fmt.Errorf("failed to create NOVA_CATALOG stream: %w", err)
	}

	return nil
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

// Close closes the NATS connection.
// It gracefully closes the connection to the NATS server.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// shouldDedup checks if an event should be deduplicated based on the 2-minute window.
// It takes a map key and the dedup map, and returns true if the event was
// published within the last 2 minutes.
func (p *natsPub) shouldDedup(key string, dedupMap map[string]time.Time) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if lastTime, exists := dedupMap[key]; exists {
		// Check if the last event was within the 2-minute dedup window
		return time.Since(lastTime) < 2*time.Minute
	}

	return false
}

// updateDedup updates the deduplication map with the current time for a given key.
// This should be called after successfully publishing an event.
func (p *natsPub) updateDedup(key string, dedupMap map[string]time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Clean up old entries to prevent memory leaks
	cutoff := time.Now().Add(-5 * time.Minute) // Keep entries for 5 minutes
	for k, t := range dedupMap {
		if t.Before(cutoff) {
			delete(dedupMap, k)
		}
	}

	// Update the current key with the current time
	dedupMap[key] = time.Now()
}

// publish wraps a payload in the standard envelope and sends it.
func (p *natsPub) publish(subject, eventType string, payload interface{}) error {
	envelope := EventEnvelope{
		Type:          eventType,           // Event type
		Version:       "1.0.0",             // Event schema version
		OccurredAt:    time.Now().UTC(),    // Event timestamp
		CorrelationID: uuid.New().String(), // Unique correlation ID
		Payload:       payload,             // Event data
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(subject, b)
	return err
}

// PublishOrderCompleted publishes a completed purchase to the NOVA_ORDERS
// stream.
func (p *natsPub) PublishOrderCompleted(ctx context.Context, order model.Order) error {
	if p.shouldDedup(order.ID, p.orderDedup) {
		return nil
	}

	if err := p.publish("nova.orders.completed", "nova.orders.completed", order); err != nil {
		return err
	}

	p.updateDedup(order.ID, p.orderDedup)
	return nil
}

// PublishProductSaved publishes a catalog write to the NOVA_CATALOG stream.
// Saves are not deduplicated; consecutive edits are distinct events.
func (p *natsPub) PublishProductSaved(ctx context.Context, product model.Product) error {
	return p.publish("nova.catalog.saved", "nova.catalog.saved", product)
}

// PublishProductDeleted publishes a catalog deletion to the NOVA_CATALOG
// stream.
func (p *natsPub) PublishProductDeleted(ctx context.Context, productID string) error {
	return p.publish("nova.catalog.deleted", "nova.catalog.deleted", map[string]string{"productId": productID})
}

// PublishRequestSubmitted publishes a board submission to the NOVA_CATALOG
// stream. Submissions are deduplicated by request ID.
func (p *natsPub) PublishRequestSubmitted(ctx context.Context, request model.ProductRequest) error {
	if p.shouldDedup(request.ID, p.catalogDedup) {
		return nil
	}

	if err := p.publish("nova.requests.submitted", "nova.requests.submitted", request); err != nil {
		return err
	}

	p.updateDedup(request.ID, p.catalogDedup)
	return nil
}
