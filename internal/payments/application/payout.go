package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
)

// PayoutReconciler records payout outcomes for connected accounts. Failed
// payouts are audited but never change the trainer's risk level.
type PayoutReconciler struct {
	trainers domain.TrainerRepository
	payouts  domain.PayoutRepository
	decoder  domain.PayloadDecoder
	audit    *AuditLog
	logger   *slog.Logger
}

// NewPayoutReconciler creates the payout handler.
func NewPayoutReconciler(trainers domain.TrainerRepository, payouts domain.PayoutRepository, decoder domain.PayloadDecoder, audit *AuditLog, logger *slog.Logger) *PayoutReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayoutReconciler{trainers: trainers, payouts: payouts, decoder: decoder, audit: audit, logger: logger}
}

// EventTypes implements EventHandler.
func (p *PayoutReconciler) EventTypes() []domain.EventType {
	return []domain.EventType{domain.EventPayoutPaid, domain.EventPayoutFailed}
}

// Prepare implements EventHandler.
func (p *PayoutReconciler) Prepare(_ context.Context, ev *domain.Event) (ApplyFunc, error) {
	payout, err := p.decoder.Payout(ev)
	if err != nil {
		return nil, err
	}
	status := domain.PayoutPaid
	if ev.Type == domain.EventPayoutFailed {
		status = domain.PayoutFailed
	}
	return func(ctx context.Context) error {
		return p.record(ctx, ev, payout, status)
	}, nil
}

func (p *PayoutReconciler) record(ctx context.Context, ev *domain.Event, payout domain.PayoutSnapshot, status domain.PayoutStatus) error {
	trainer, err := trainerForAccount(ctx, p.trainers, ev.AccountRef)
	if err != nil {
		return err
	}

	entry := domain.NewPayoutLog(trainer.ID, payout, status, ev.OccurredAt)
	inserted, err := p.payouts.Append(ctx, entry)
	if err != nil {
		return domain.Transient("append payout", err)
	}
	if !inserted {
		p.logger.InfoContext(ctx, "payout outcome already recorded",
			"payout_id", payout.ID,
			"status", status,
		)
		return nil
	}

	if status == domain.PayoutPaid {
		if err := p.trainers.SetLastPayoutAt(ctx, trainer.ID, ev.OccurredAt); err != nil {
			return domain.Transient("set last payout", err)
		}
		return nil
	}

	return p.audit.Record(ctx, domain.NewActivityEntry(trainer.ID,
		domain.ActivityPayoutFailed,
		domain.SeverityHigh,
		fmt.Sprintf("Payout failed: %s", payout.FailureMessage),
		map[string]any{
			"payout_id":    payout.ID,
			"failure_code": payout.FailureCode,
			"amount":       payout.Amount,
			"currency":     payout.Currency,
		},
	))
}

// trainerForAccount resolves the trainer owning a connected account.
func trainerForAccount(ctx context.Context, trainers domain.TrainerRepository, accountRef string) (*domain.Trainer, error) {
	if accountRef == "" {
		return nil, fmt.Errorf("%w: event carries no connected account", domain.ErrUnknownEntity)
	}
	trainer, err := trainers.FindByConnectID(ctx, accountRef)
	if err != nil {
		return nil, lookupError("load trainer by account", err)
	}
	return trainer, nil
}
