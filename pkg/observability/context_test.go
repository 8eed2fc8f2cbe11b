package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, OperationFromContext(ctx))
	assert.Empty(t, TrainerIDFromContext(ctx))

	ctx = WithCorrelationID(ctx, "evt_123")
	ctx = WithOperation(ctx, "charge.dispute.created")
	ctx = WithTrainerID(ctx, "trainer-1")

	assert.Equal(t, "evt_123", CorrelationIDFromContext(ctx))
	assert.Equal(t, "charge.dispute.created", OperationFromContext(ctx))
	assert.Equal(t, "trainer-1", TrainerIDFromContext(ctx))
}

func TestWithCorrelationID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")

	_, err := uuid.Parse(CorrelationIDFromContext(ctx))
	require.NoError(t, err)
}

func TestNewRequestContext(t *testing.T) {
	t.Run("keeps caller correlation id", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "upstream-1")
		assert.Equal(t, "upstream-1", CorrelationIDFromContext(ctx))
		assert.NotEmpty(t, RequestIDFromContext(ctx))
	})

	t.Run("generates both ids", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "")
		assert.NotEmpty(t, CorrelationIDFromContext(ctx))
		assert.NotEqual(t, CorrelationIDFromContext(ctx), RequestIDFromContext(ctx))
	})
}
