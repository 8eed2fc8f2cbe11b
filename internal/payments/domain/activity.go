package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity grades an activity entry.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ActivityType names what an activity entry records.
type ActivityType string

const (
	ActivitySubscriptionCreated    ActivityType = "subscription_created"
	ActivitySubscriptionCanceled   ActivityType = "subscription_canceled"
	ActivitySubscriberCountAnomaly ActivityType = "subscriber_count_anomaly"
	ActivityPayoutFailed           ActivityType = "payout_failed"
	ActivityDisputeCreated         ActivityType = "dispute_created"
	ActivityDisputeClosed          ActivityType = "dispute_closed"
	ActivityVerificationRequired   ActivityType = "verification_required"
	ActivityRiskLevelChanged       ActivityType = "risk_level_changed"
)

// ActivityEntry is one append-only audit log row.
type ActivityEntry struct {
	ID          uuid.UUID
	TrainerID   uuid.UUID
	Type        ActivityType
	Severity    Severity
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// NewActivityEntry creates an entry stamped now.
func NewActivityEntry(trainerID uuid.UUID, typ ActivityType, severity Severity, description string, metadata map[string]any) *ActivityEntry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &ActivityEntry{
		ID:          uuid.New(),
		TrainerID:   trainerID,
		Type:        typ,
		Severity:    severity,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

// MetadataJSON encodes the metadata for storage.
func (e *ActivityEntry) MetadataJSON() (string, error) {
	return encodeJSON(e.Metadata)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
