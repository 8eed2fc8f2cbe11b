package outbox_test

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type riskChanged struct {
	domain.BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

func TestNewMessage(t *testing.T) {
	trainerID := uuid.New()
	event := &riskChanged{
		BaseEvent: domain.NewBaseEvent(trainerID, "trainer", "payments.trainer.risk_changed"),
		From:      "low",
		To:        "high",
	}
	event.SetMetadata(domain.EventMetadata{CorrelationID: "evt_1"})

	msg, err := outbox.NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, trainerID, msg.AggregateID)
	assert.Equal(t, "payments.trainer.risk_changed", msg.RoutingKey)
	assert.Zero(t, msg.ID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "high", payload["to"])

	var metadata domain.EventMetadata
	require.NoError(t, json.Unmarshal(msg.Metadata, &metadata))
	assert.Equal(t, "evt_1", metadata.CorrelationID)
}

func TestNewMessage_RequiresRoutingKey(t *testing.T) {
	_, err := outbox.NewMessage(&riskChanged{BaseEvent: domain.NewBaseEvent(uuid.New(), "trainer", "")})
	assert.ErrorIs(t, err, outbox.ErrEmptyRoutingKey)
}

func TestMessage_Trace(t *testing.T) {
	msg := &outbox.Message{Metadata: json.RawMessage(`{"correlation_id":"evt_9","causation_id":"op-1"}`)}
	meta := msg.Trace()
	assert.Equal(t, "evt_9", meta.CorrelationID)
	assert.Equal(t, "op-1", meta.CausationID)

	assert.Zero(t, (&outbox.Message{}).Trace())
	assert.Zero(t, (&outbox.Message{Metadata: json.RawMessage(`not json`)}).Trace())
}
