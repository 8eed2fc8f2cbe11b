package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

// Metric names emitted by the processor.
const (
	MetricPublished    = "outbox.published"
	MetricFailed       = "outbox.failed"
	MetricDeadLettered = "outbox.dead_lettered"
)

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries counts delivery attempts. The attempt that reaches it
	// dead-letters the message instead of rescheduling it.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns the settings used when none are configured.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Backoff is the delay before the given attempt, doubling from
// RetryBackoffBase and capped at RetryBackoffMax.
func (c ProcessorConfig) Backoff(attempt int) time.Duration {
	base, ceiling := c.RetryBackoffBase, c.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	attempt = max(attempt, 1)

	delay := base << convert.IntToUintSafe(attempt-1)
	if delay <= 0 || delay > ceiling {
		return ceiling
	}
	return delay
}

func (c ProcessorConfig) exhausted(attempt int) bool {
	return c.MaxRetries <= 0 || attempt >= c.MaxRetries
}

// Stats is a point-in-time view of the relay for health endpoints.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// Processor relays due outbox messages to the broker.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a relay. A nil logger uses slog.Default and nil
// metrics disables emission.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   metrics,
	}
}

// Start launches the poll loop. Calling it on a running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
	return nil
}

// Stop cancels the poll loop and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.lifecycle.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the poll loop is active.
func (p *Processor) IsRunning() bool {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.cancel != nil
}

// ProcessOnce relays a single batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.relay(ctx)
}

// GetStats returns a copy of the relay counters.
func (p *Processor) GetStats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.IsRunning = running
	return s
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	interval := p.config.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.relay(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *Processor) relay(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.update(func(s *Stats, now time.Time) { s.fail(err, now) })
		return err
	}
	var lag float64
	p.update(func(s *Stats, now time.Time) {
		s.observeBatch(batch, now)
		lag = s.LagSeconds
	})
	p.metrics.Gauge(observability.MetricOutboxLagSeconds, lag)

	for _, msg := range batch {
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.reschedule(ctx, msg, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			// The broker has the event; a redelivery is absorbed downstream by event id.
			p.logger.Error("failed to mark message as published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		p.update(func(s *Stats, _ time.Time) { s.PublishedCount++ })
		p.metrics.Counter(MetricPublished, 1, observability.T("routing_key", msg.RoutingKey))
	}
	return nil
}

func (p *Processor) reschedule(ctx context.Context, msg *Message, cause error) {
	attempt := msg.RetryCount + 1
	meta := msg.Trace()
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"correlation_id", meta.CorrelationID,
		"causation_id", meta.CausationID,
		"attempt", attempt,
		"error", cause,
	)
	tag := observability.T("routing_key", msg.RoutingKey)

	if p.config.exhausted(attempt) {
		p.update(func(s *Stats, now time.Time) {
			s.DeadCount++
			s.fail(cause, now)
		})
		p.metrics.Counter(MetricDeadLettered, 1, tag)
		if err := p.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
			p.logger.Error("failed to mark message as dead-lettered", "id", msg.ID, "error", err)
		}
		return
	}

	p.update(func(s *Stats, now time.Time) {
		s.FailedCount++
		s.fail(cause, now)
	})
	p.metrics.Counter(MetricFailed, 1, tag)
	if err := p.repo.MarkFailed(ctx, msg.ID, cause.Error(), time.Now().Add(p.config.Backoff(attempt))); err != nil {
		p.logger.Error("failed to mark message as failed", "id", msg.ID, "error", err)
	}
}

func (p *Processor) update(fn func(s *Stats, now time.Time)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	fn(&p.stats, time.Now())
}

func (s *Stats) fail(err error, now time.Time) {
	s.LastError = err.Error()
	s.LastErrorAt = &now
}

func (s *Stats) observeBatch(batch []*Message, now time.Time) {
	s.LastProcessedAt = &now
	s.OldestMessageAt = nil
	s.LagSeconds = 0
	for _, msg := range batch {
		if s.OldestMessageAt == nil || msg.CreatedAt.Before(*s.OldestMessageAt) {
			created := msg.CreatedAt
			s.OldestMessageAt = &created
		}
	}
	if s.OldestMessageAt != nil {
		s.LagSeconds = now.Sub(*s.OldestMessageAt).Seconds()
	}
}
