package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	sharedApplication "github.com/felixgeelhaar/coachpay/internal/shared/application"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

// ApplyFunc writes an event's effects. It runs inside the event's unit of
// work, after the ledger claim.
type ApplyFunc func(ctx context.Context) error

// EventHandler turns one family of processor events into state changes.
type EventHandler interface {
	EventTypes() []domain.EventType
	// Prepare decodes the event and performs processor reads. It runs
	// outside the transaction so no row lock is held across network calls.
	Prepare(ctx context.Context, ev *domain.Event) (ApplyFunc, error)
}

// errAlreadyProcessed aborts the unit of work when the ledger claim loses.
var errAlreadyProcessed = errors.New("event already processed")

// Reconciler applies each authenticated event exactly once: the ledger row
// and every effect of the event commit in one transaction.
type Reconciler struct {
	uow      sharedApplication.UnitOfWork
	dedup    *Deduplicator
	handlers map[domain.EventType]EventHandler
	logger   *slog.Logger
	metrics  observability.Metrics
}

// NewReconciler builds the dispatcher. Every handled event type must have
// exactly one handler.
func NewReconciler(
	uow sharedApplication.UnitOfWork,
	dedup *Deduplicator,
	handlers []EventHandler,
	logger *slog.Logger,
	metrics observability.Metrics,
) (*Reconciler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	registry := make(map[domain.EventType]EventHandler, len(handlers))
	for _, h := range handlers {
		for _, t := range h.EventTypes() {
			if _, dup := registry[t]; dup {
				return nil, fmt.Errorf("duplicate handler for %s", t)
			}
			registry[t] = h
		}
	}
	for _, t := range domain.HandledEventTypes() {
		if _, ok := registry[t]; !ok {
			return nil, fmt.Errorf("no handler for %s", t)
		}
	}

	return &Reconciler{
		uow:      uow,
		dedup:    dedup,
		handlers: registry,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Reconcile applies ev. Duplicates, ignored types and events absorbed by
// policy return a nil error; only transient failures ask for redelivery.
func (r *Reconciler) Reconcile(ctx context.Context, ev *domain.Event) (result domain.ApplyResult, err error) {
	ctx = observability.WithCorrelationID(ctx, ev.ID)
	ctx = observability.WithOperation(ctx, string(ev.Type))
	tag := observability.T("event_type", string(ev.Type))
	r.metrics.Counter(observability.MetricWebhookReceived, 1, tag)

	timer := observability.StartTimer("reconcile").WithMetrics(r.metrics).WithTags(tag)
	defer func() { timer.Stop(ctx, err) }()

	logger := r.logger.With("event_id", ev.ID, "event_type", ev.Type)

	handler, ok := r.handlers[ev.Type]
	if !ok {
		r.metrics.Counter(observability.MetricWebhookIgnored, 1, tag)
		logger.DebugContext(ctx, "event type not handled")
		return domain.Ignored, nil
	}

	seen, err := r.dedup.Seen(ctx, ev.ID)
	if err != nil {
		return r.fail(ctx, logger, tag, err)
	}
	if seen {
		r.metrics.Counter(observability.MetricWebhookDuplicate, 1, tag)
		logger.InfoContext(ctx, "duplicate event skipped")
		return domain.AlreadyProcessed, nil
	}

	apply, err := handler.Prepare(ctx, ev)
	if err != nil {
		if domain.Absorbed(err) {
			return r.absorb(ctx, logger, tag, ev, err)
		}
		return r.fail(ctx, logger, tag, err)
	}

	result, err = r.commit(ctx, ev, apply)
	switch {
	case err == nil:
	case domain.Absorbed(err):
		return r.absorb(ctx, logger, tag, ev, err)
	default:
		return r.fail(ctx, logger, tag, err)
	}

	if result == domain.AlreadyProcessed {
		r.metrics.Counter(observability.MetricWebhookDuplicate, 1, tag)
		logger.InfoContext(ctx, "duplicate event skipped")
		return result, nil
	}

	r.metrics.Counter(observability.MetricWebhookApplied, 1, tag)
	logger.InfoContext(ctx, "event applied")
	return result, nil
}

func (r *Reconciler) commit(ctx context.Context, ev *domain.Event, apply ApplyFunc) (domain.ApplyResult, error) {
	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		result, err := r.dedup.ApplyOnce(txCtx, ev)
		if err != nil {
			return err
		}
		if result == domain.AlreadyProcessed {
			return errAlreadyProcessed
		}
		return apply(txCtx)
	})
	if errors.Is(err, errAlreadyProcessed) {
		return domain.AlreadyProcessed, nil
	}
	if err != nil {
		return 0, err
	}
	return domain.FirstSeen, nil
}

// absorb acknowledges an event whose effects were rejected by policy. Only
// the ledger row commits so redeliveries are recognised as duplicates.
func (r *Reconciler) absorb(ctx context.Context, logger *slog.Logger, tag observability.Tag, ev *domain.Event, cause error) (domain.ApplyResult, error) {
	logger.WarnContext(ctx, "event absorbed without effects", "reason", cause)

	result, err := r.commit(ctx, ev, func(context.Context) error { return nil })
	if err != nil {
		return r.fail(ctx, logger, tag, err)
	}
	if result == domain.AlreadyProcessed {
		r.metrics.Counter(observability.MetricWebhookDuplicate, 1, tag)
		return result, nil
	}
	r.metrics.Counter(observability.MetricWebhookAbsorbed, 1, tag)
	return domain.FirstSeen, nil
}

func (r *Reconciler) fail(ctx context.Context, logger *slog.Logger, tag observability.Tag, err error) (domain.ApplyResult, error) {
	r.metrics.Counter(observability.MetricWebhookFailed, 1, tag)
	logger.ErrorContext(ctx, "event processing failed", "error", err)
	if errors.Is(err, domain.ErrTransient) {
		return 0, err
	}
	return 0, fmt.Errorf("%w: %w", domain.ErrTransient, err)
}
