package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
)

// AccountHandler applies connected-account updates pushed by the processor.
type AccountHandler struct {
	trainers domain.TrainerRepository
	decoder  domain.PayloadDecoder
	risk     *RiskEngine
	audit    *AuditLog
	logger   *slog.Logger
}

// NewAccountHandler creates the account.updated handler.
func NewAccountHandler(trainers domain.TrainerRepository, decoder domain.PayloadDecoder, risk *RiskEngine, audit *AuditLog, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{trainers: trainers, decoder: decoder, risk: risk, audit: audit, logger: logger}
}

// EventTypes implements EventHandler.
func (h *AccountHandler) EventTypes() []domain.EventType {
	return []domain.EventType{domain.EventAccountUpdated}
}

// Prepare implements EventHandler.
func (h *AccountHandler) Prepare(_ context.Context, ev *domain.Event) (ApplyFunc, error) {
	account, err := h.decoder.Account(ev)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return h.apply(ctx, ev, account)
	}, nil
}

func (h *AccountHandler) apply(ctx context.Context, ev *domain.Event, account *domain.AccountSnapshot) error {
	trainer, err := trainerForAccount(ctx, h.trainers, account.ID)
	if err != nil {
		return err
	}

	if err := h.trainers.ApplyAccountUpdate(ctx, trainer.ID, domain.AccountUpdateFrom(account)); err != nil {
		return lookupError("apply account update", err)
	}

	if account.RequirementsDue() {
		if err := h.audit.Record(ctx, domain.NewActivityEntry(trainer.ID,
			domain.ActivityVerificationRequired,
			domain.SeverityMedium,
			"Account verification requirements pending",
			map[string]any{
				"currently_due": account.CurrentlyDue,
				"past_due":      account.PastDue,
			},
		)); err != nil {
			return err
		}
	}

	_, err = h.risk.Recompute(ctx, trainer.ID, string(ev.Type))
	return err
}
