package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConsumer struct {
	bindings []string
	events   []*eventbus.ConsumedEvent
	err      error
}

func (c *recordingConsumer) Bindings() []string { return c.bindings }

func (c *recordingConsumer) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestConsumerRegistry_Register(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	consumer := &recordingConsumer{
		bindings: []string{"payments.activity.recorded", "payments.trainer.risk_changed"},
	}

	registry.Register(consumer)

	assert.Len(t, registry.Consumers("payments.activity.recorded"), 1)
	assert.Len(t, registry.Consumers("payments.trainer.risk_changed"), 1)
	assert.Empty(t, registry.Consumers("payments.unknown"))
	assert.Equal(t, 2, registry.Len())
}

func TestConsumerRegistry_TopicPatterns(t *testing.T) {
	tests := []struct {
		pattern    string
		routingKey string
		matches    bool
	}{
		{"payments.activity.recorded", "payments.activity.recorded", true},
		{"payments.*.recorded", "payments.activity.recorded", true},
		{"payments.*", "payments.activity.recorded", false},
		{"payments.#", "payments.activity.recorded", true},
		{"payments.#", "payments", true},
		{"#", "payments.trainer.risk_changed", true},
		{"#.risk_changed", "payments.trainer.risk_changed", true},
		{"payments.trainer.*", "payments.activity.recorded", false},
		{"billing.#", "payments.activity.recorded", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.routingKey, func(t *testing.T) {
			registry := eventbus.NewConsumerRegistry(nil)
			registry.Register(&recordingConsumer{bindings: []string{tt.pattern}})

			assert.Equal(t, tt.matches, len(registry.Consumers(tt.routingKey)) == 1)
		})
	}
}

func TestConsumerRegistry_OverlappingBindingsDeliverOnce(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	consumer := &recordingConsumer{bindings: []string{"payments.#", "payments.activity.recorded"}}
	registry.Register(consumer)

	require.NoError(t, registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "payments.activity.recorded",
	}))
	assert.Len(t, consumer.events, 1)
}

func TestConsumerRegistry_DispatchContinuesAfterError(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	failing := &recordingConsumer{bindings: []string{"payments.activity.recorded"}, err: errors.New("boom")}
	healthy := &recordingConsumer{bindings: []string{"payments.activity.recorded"}}
	registry.Register(failing)
	registry.Register(healthy)

	err := registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "payments.activity.recorded",
	})

	assert.EqualError(t, err, "payments.activity.recorded: boom")
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestConsumerRegistry_DispatchWithoutConsumers(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	err := registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "payments.activity.recorded"})
	assert.NoError(t, err)
}

func TestInProcessBus_Publish(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)
	consumer := &recordingConsumer{bindings: []string{"payments.trainer.risk_changed"}}
	bus.RegisterConsumer(consumer)

	eventID := uuid.New()
	payload, err := json.Marshal(map[string]any{
		"event_id":    eventID,
		"routing_key": "payments.trainer.risk_changed",
		"occurred_at": time.Now().UTC(),
		"to":          "high",
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "payments.trainer.risk_changed", payload))

	require.Len(t, consumer.events, 1)
	assert.Equal(t, eventID, consumer.events[0].EventID)

	var body struct {
		To string `json:"to"`
	}
	require.NoError(t, consumer.events[0].Decode(&body))
	assert.Equal(t, "high", body.To)
}

func TestInProcessBus_PublishPropagatesConsumerError(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)
	bus.RegisterConsumer(&recordingConsumer{
		bindings: []string{"payments.activity.recorded"},
		err:      errors.New("consumer down"),
	})

	err := bus.Publish(context.Background(), "payments.activity.recorded", []byte(`{"event_id":"`+uuid.NewString()+`"}`))
	assert.EqualError(t, err, "payments.activity.recorded: consumer down")
}

func TestInProcessBus_PublishRejectsInvalidPayload(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)
	assert.Error(t, bus.Publish(context.Background(), "payments.activity.recorded", []byte("not json")))
}
