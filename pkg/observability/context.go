package observability

import (
	"context"

	"github.com/google/uuid"
)

type (
	correlationIDKey struct{}
	requestIDKey     struct{}
	operationKey     struct{}
	trainerIDKey     struct{}
)

// Attribute keys used in logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	OperationKey     = "operation"
	TrainerIDKey     = "trainer_id"
)

// WithCorrelationID tags ctx with the id that ties together everything done
// for one processor event or API call. An empty id generates one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey{})
}

// WithRequestID tags ctx with an HTTP request id. An empty id generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey{})
}

// WithOperation tags ctx with the operation being performed, such as the
// event type under reconciliation.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext returns the operation, or "".
func OperationFromContext(ctx context.Context) string {
	return stringValue(ctx, operationKey{})
}

// WithTrainerID tags ctx with the trainer a request acts on.
func WithTrainerID(ctx context.Context, trainerID string) context.Context {
	return context.WithValue(ctx, trainerIDKey{}, trainerID)
}

// TrainerIDFromContext returns the trainer id, or "".
func TrainerIDFromContext(ctx context.Context) string {
	return stringValue(ctx, trainerIDKey{})
}

// NewRequestContext starts a request: a fresh request id plus the caller's
// correlation id when it sent one.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), parentCorrelationID)
}

func stringValue(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
