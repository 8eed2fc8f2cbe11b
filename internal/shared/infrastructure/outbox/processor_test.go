package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	mu           sync.Mutex
	messages     []*outbox.Message
	publishedIDs []int64
	failedIDs    []int64
	deadIDs      []int64
}

func (r *fakeRepository) Save(_ context.Context, msg *outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeRepository) GetUnpublished(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*outbox.Message
	now := time.Now()
	for _, msg := range r.messages {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeRepository) find(id int64) *outbox.Message {
	for _, msg := range r.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (r *fakeRepository) MarkPublished(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishedIDs = append(r.publishedIDs, id)
	now := time.Now()
	r.find(id).PublishedAt = &now
	return nil
}

func (r *fakeRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedIDs = append(r.failedIDs, id)
	msg := r.find(id)
	msg.RetryCount++
	msg.LastError = &errMsg
	msg.NextRetryAt = &nextRetryAt
	return nil
}

func (r *fakeRepository) MarkDead(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadIDs = append(r.deadIDs, id)
	now := time.Now()
	msg := r.find(id)
	msg.DeadLetteredAt = &now
	msg.DeadLetterReason = &reason
	return nil
}

func (r *fakeRepository) DeleteOld(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *fakeRepository) Backlog(context.Context) (int64, int64, error) { return 0, 0, nil }

type fakePublisher struct {
	mu          sync.Mutex
	published   []string
	failForKeys map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failForKeys: make(map[string]bool)}
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failForKeys[routingKey] {
		return errors.New("publish failed")
	}
	p.published = append(p.published, routingKey)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestMessage(routingKey string) *outbox.Message {
	payload, _ := json.Marshal(map[string]string{"trainer_id": uuid.NewString()})
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "trainer",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	metrics := observability.NewInMemoryMetrics()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, metrics)

	require.NoError(t, repo.Save(context.Background(), newTestMessage("payments.activity.recorded")))
	require.NoError(t, repo.Save(context.Background(), newTestMessage("payments.trainer.risk_changed")))

	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 2, publisher.count())
	assert.Len(t, repo.publishedIDs, 2)
	assert.Equal(t, int64(1), metrics.GetCounter(outbox.MetricPublished,
		observability.T("routing_key", "payments.activity.recorded")))

	assert.Contains(t, metrics.Snapshot().Gauges, observability.MetricOutboxLagSeconds)

	stats := processor.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.NotNil(t, stats.OldestMessageAt)
}

func TestProcessor_ProcessOnce_PublishFailureSchedulesRetry(t *testing.T) {
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	publisher.failForKeys["payments.trainer.risk_changed"] = true
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

	ok := newTestMessage("payments.activity.recorded")
	failing := newTestMessage("payments.trainer.risk_changed")
	require.NoError(t, repo.Save(context.Background(), ok))
	require.NoError(t, repo.Save(context.Background(), failing))

	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 1, publisher.count())
	assert.Equal(t, []int64{failing.ID}, repo.failedIDs)
	require.NotNil(t, failing.NextRetryAt)
	assert.True(t, failing.NextRetryAt.After(time.Now()))

	// The failed message is not due yet, so a second pass publishes nothing.
	require.NoError(t, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 1, publisher.count())

	stats := processor.GetStats()
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.NotNil(t, stats.LastErrorAt)
}

func TestProcessor_ProcessOnce_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	publisher.failForKeys["payments.activity.recorded"] = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 1
	processor := outbox.NewProcessor(repo, publisher, config, nil, nil)

	require.NoError(t, repo.Save(context.Background(), newTestMessage("payments.activity.recorded")))
	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Empty(t, repo.failedIDs)
	assert.Len(t, repo.deadIDs, 1)
	assert.Equal(t, uint64(1), processor.GetStats().DeadCount)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	config := outbox.ProcessorConfig{
		PollInterval:     10 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}
	processor := outbox.NewProcessor(repo, publisher, config, nil, nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.GetStats().IsRunning)

	require.NoError(t, repo.Save(context.Background(), newTestMessage("payments.activity.recorded")))

	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 10*time.Millisecond)

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.IsRunning())
}

func TestProcessorConfig_Backoff(t *testing.T) {
	config := outbox.ProcessorConfig{RetryBackoffBase: time.Second, RetryBackoffMax: 10 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{80, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, config.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, time.Minute, outbox.ProcessorConfig{}.Backoff(30))
}
