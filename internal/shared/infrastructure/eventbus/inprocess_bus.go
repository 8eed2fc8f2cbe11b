package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InProcessBus delivers outbox messages straight to the registered
// consumers. The worker uses it when no broker URL is configured.
type InProcessBus struct {
	mu       sync.Mutex
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewInProcessBus creates an empty bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{registry: NewConsumerRegistry(logger), logger: logger}
}

// RegisterConsumer subscribes consumer to its bindings.
func (b *InProcessBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish dispatches one message at a time. A consumer error fails the
// publish so the outbox schedules a retry.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := DecodeEnvelope(routingKey, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	if err := b.registry.Dispatch(ctx, event); err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "event dispatched",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close has nothing to release.
func (b *InProcessBus) Close() error { return nil }
