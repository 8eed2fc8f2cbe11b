package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the outcome of a payout.
type PayoutStatus string

const (
	PayoutPaid   PayoutStatus = "paid"
	PayoutFailed PayoutStatus = "failed"
)

// PayoutLog is one append-only payout outcome.
type PayoutLog struct {
	ID             uuid.UUID
	TrainerID      uuid.UUID
	StripePayoutID string
	// AmountMinor is the amount in minor currency units as sent by the processor.
	AmountMinor int64
	Currency    string
	Status      PayoutStatus
	Metadata    map[string]any
	CreatedAt   time.Time
}

// NewPayoutLog records a payout outcome. Paid payouts keep arrival date and
// method, failed ones the failure code and message.
func NewPayoutLog(trainerID uuid.UUID, p PayoutSnapshot, status PayoutStatus, at time.Time) *PayoutLog {
	metadata := map[string]any{}
	switch status {
	case PayoutPaid:
		metadata["arrival_date"] = p.ArrivalDate
		metadata["method"] = p.Method
	case PayoutFailed:
		metadata["failure_code"] = p.FailureCode
		metadata["failure_message"] = p.FailureMessage
	}
	return &PayoutLog{
		ID:             uuid.New(),
		TrainerID:      trainerID,
		StripePayoutID: p.ID,
		AmountMinor:    p.Amount,
		Currency:       p.Currency,
		Status:         status,
		Metadata:       metadata,
		CreatedAt:      at,
	}
}

// MetadataJSON encodes the metadata for storage.
func (p *PayoutLog) MetadataJSON() (string, error) {
	return encodeJSON(p.Metadata)
}
