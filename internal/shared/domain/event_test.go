package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainerFlagged struct {
	domain.BaseEvent
	Reason string `json:"reason"`
}

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	before := time.Now().UTC()

	event := domain.NewBaseEvent(aggregateID, "trainer", "payments.trainer.flagged")

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "trainer", event.AggregateType())
	assert.Equal(t, "payments.trainer.flagged", event.RoutingKey())
	assert.False(t, event.OccurredAt().Before(before))
}

func TestBaseEvent_MetadataNotSerialized(t *testing.T) {
	event := &trainerFlagged{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "trainer", "payments.trainer.flagged"),
		Reason:    "dispute",
	}
	event.SetMetadata(domain.EventMetadata{CorrelationID: "evt_123"})
	assert.Equal(t, "evt_123", event.Metadata().CorrelationID)

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "dispute", decoded["reason"])
	assert.Equal(t, "payments.trainer.flagged", decoded["routing_key"])
	assert.NotContains(t, string(raw), "evt_123")
}
