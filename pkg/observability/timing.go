package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer records the duration and outcome of one operation.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{
		operation: operation,
		start:     time.Now(),
	}
}

// WithLogger logs failed operations to logger on stop.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records duration and counters to metrics on stop.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// WithTags labels the recorded metrics.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records the duration. A non-nil err also counts an operation error.
func (t *Timer) Stop(ctx context.Context, err error) time.Duration {
	duration := time.Since(t.start)

	if t.logger != nil && err != nil {
		t.logger.WarnContext(ctx, "operation failed",
			"operation", t.operation,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	}

	if t.metrics != nil {
		tags := append([]Tag{T("operation", t.operation)}, t.tags...)
		t.metrics.Timing(MetricOperationDuration, duration, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}

	return duration
}

// TimeOperationResult times fn and records its outcome.
func TimeOperationResult[T any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	timer := StartTimer(operation).
		WithLogger(logger).
		WithMetrics(metrics)

	result, err := fn()
	timer.Stop(ctx, err)
	return result, err
}
