package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type binding struct {
	pattern  []string
	consumer EventConsumer
}

// ConsumerRegistry routes events to consumers by topic binding, with the
// same matching rules as a RabbitMQ topic exchange: "*" matches exactly one
// word and "#" matches zero or more.
type ConsumerRegistry struct {
	mu       sync.RWMutex
	bindings []binding
	logger   *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register binds consumer to each of its patterns.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pattern := range consumer.Bindings() {
		r.bindings = append(r.bindings, binding{
			pattern:  strings.Split(pattern, "."),
			consumer: consumer,
		})
		r.logger.Debug("consumer bound", "pattern", pattern)
	}
}

// Consumers returns the consumers bound to routingKey. A consumer whose
// patterns overlap is returned once.
func (r *ConsumerRegistry) Consumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	words := strings.Split(routingKey, ".")
	var matched []EventConsumer
	for _, b := range r.bindings {
		if !topicMatch(b.pattern, words) || contains(matched, b.consumer) {
			continue
		}
		matched = append(matched, b.consumer)
	}
	return matched
}

// Len returns the number of bindings.
func (r *ConsumerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Dispatch delivers event to every bound consumer. A failing consumer does
// not stop the others; all failures are joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	consumers := r.Consumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.DebugContext(ctx, "no consumers bound", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, consumer := range consumers {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "consumer failed to handle event",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", event.RoutingKey, err))
		}
	}
	return errors.Join(errs...)
}

func topicMatch(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if topicMatch(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && topicMatch(pattern[1:], words[1:])
	default:
		return len(words) > 0 && pattern[0] == words[0] && topicMatch(pattern[1:], words[1:])
	}
}

func contains(consumers []EventConsumer, c EventConsumer) bool {
	for _, existing := range consumers {
		if existing == c {
			return true
		}
	}
	return false
}
