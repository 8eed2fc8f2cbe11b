package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
)

// DisputeHandler feeds chargeback disputes into the trainer's risk inputs.
type DisputeHandler struct {
	trainers domain.TrainerRepository
	gateway  domain.PaymentGateway
	decoder  domain.PayloadDecoder
	risk     *RiskEngine
	audit    *AuditLog
	logger   *slog.Logger
}

// NewDisputeHandler creates the dispute handler.
func NewDisputeHandler(trainers domain.TrainerRepository, gateway domain.PaymentGateway, decoder domain.PayloadDecoder, risk *RiskEngine, audit *AuditLog, logger *slog.Logger) *DisputeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisputeHandler{trainers: trainers, gateway: gateway, decoder: decoder, risk: risk, audit: audit, logger: logger}
}

// EventTypes implements EventHandler.
func (h *DisputeHandler) EventTypes() []domain.EventType {
	return []domain.EventType{domain.EventDisputeCreated, domain.EventDisputeClosed}
}

// Prepare implements EventHandler. A closed dispute refreshes the account's
// dispute listing before the transaction starts.
func (h *DisputeHandler) Prepare(ctx context.Context, ev *domain.Event) (ApplyFunc, error) {
	dispute, err := h.decoder.Dispute(ev)
	if err != nil {
		return nil, err
	}

	if ev.Type == domain.EventDisputeCreated {
		return func(ctx context.Context) error {
			return h.created(ctx, ev, dispute)
		}, nil
	}

	if ev.AccountRef == "" {
		return nil, fmt.Errorf("%w: dispute %s carries no connected account", domain.ErrUnknownEntity, dispute.ID)
	}
	listing, err := h.gateway.ListDisputes(ctx, ev.AccountRef)
	if err != nil {
		return nil, err
	}
	summary := domain.SummarizeDisputes(listing)
	return func(ctx context.Context) error {
		return h.closed(ctx, ev, dispute, summary)
	}, nil
}

func (h *DisputeHandler) created(ctx context.Context, ev *domain.Event, dispute domain.DisputeSnapshot) error {
	trainer, err := trainerForAccount(ctx, h.trainers, ev.AccountRef)
	if err != nil {
		return err
	}

	if err := h.trainers.RecordDispute(ctx, trainer.ID); err != nil {
		return lookupError("record dispute", err)
	}
	if err := h.audit.Record(ctx, domain.NewActivityEntry(trainer.ID,
		domain.ActivityDisputeCreated,
		domain.SeverityHigh,
		fmt.Sprintf("Dispute created: %s", dispute.Reason),
		map[string]any{
			"dispute_id": dispute.ID,
			"charge_id":  dispute.ChargeID,
			"amount":     dispute.Amount,
			"reason":     dispute.Reason,
		},
	)); err != nil {
		return err
	}

	_, err = h.risk.Recompute(ctx, trainer.ID, string(ev.Type))
	return err
}

func (h *DisputeHandler) closed(ctx context.Context, ev *domain.Event, dispute domain.DisputeSnapshot, summary domain.DisputeSummary) error {
	trainer, err := trainerForAccount(ctx, h.trainers, ev.AccountRef)
	if err != nil {
		return err
	}

	severity := domain.SeverityMedium
	if dispute.Won() {
		severity = domain.SeverityLow
	}
	if err := h.audit.Record(ctx, domain.NewActivityEntry(trainer.ID,
		domain.ActivityDisputeClosed,
		severity,
		fmt.Sprintf("Dispute closed: %s", dispute.Status),
		map[string]any{
			"dispute_id": dispute.ID,
			"status":     dispute.Status,
		},
	)); err != nil {
		return err
	}

	if err := applyDisputeSummary(ctx, h.trainers, trainer.ID, summary); err != nil {
		return err
	}

	_, err = h.risk.Recompute(ctx, trainer.ID, string(ev.Type))
	return err
}

// applyDisputeSummary stores a processor dispute listing under the trainer's
// row lock. disputes_total never decreases.
func applyDisputeSummary(ctx context.Context, trainers domain.TrainerRepository, trainerID uuid.UUID, summary domain.DisputeSummary) error {
	locked, err := trainers.FindForUpdate(ctx, trainerID)
	if err != nil {
		return lookupError("lock trainer", err)
	}
	total := max(locked.DisputesTotal, summary.Total)
	if err := trainers.SetDisputeState(ctx, trainerID, summary.Active > 0, total); err != nil {
		return domain.Transient("set dispute state", err)
	}
	return nil
}
