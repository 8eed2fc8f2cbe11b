package domain

import (
	sharedDomain "github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Trainer"

// Routing keys of the events this context publishes.
const (
	RoutingActivityRecorded = "payments.activity.recorded"
	RoutingRiskChanged      = "payments.trainer.risk_changed"
)

// ActivityRecorded is emitted for every audit log entry.
type ActivityRecorded struct {
	sharedDomain.BaseEvent
	ActivityID   uuid.UUID    `json:"activity_id"`
	TrainerID    uuid.UUID    `json:"trainer_id"`
	ActivityType ActivityType `json:"activity_type"`
	Severity     Severity     `json:"severity"`
	Description  string       `json:"description"`
}

// NewActivityRecorded creates an ActivityRecorded event.
func NewActivityRecorded(e *ActivityEntry) *ActivityRecorded {
	return &ActivityRecorded{
		BaseEvent:    sharedDomain.NewBaseEvent(e.TrainerID, aggregateType, RoutingActivityRecorded),
		ActivityID:   e.ID,
		TrainerID:    e.TrainerID,
		ActivityType: e.Type,
		Severity:     e.Severity,
		Description:  e.Description,
	}
}

// RiskLevelChanged is emitted when a recomputation changes a trainer's level.
type RiskLevelChanged struct {
	sharedDomain.BaseEvent
	TrainerID uuid.UUID  `json:"trainer_id"`
	From      RiskLevel  `json:"from"`
	To        RiskLevel  `json:"to"`
	Inputs    RiskInputs `json:"inputs"`
	Trigger   string     `json:"trigger"`
}

// NewRiskLevelChanged creates a RiskLevelChanged event.
func NewRiskLevelChanged(trainerID uuid.UUID, from, to RiskLevel, in RiskInputs, trigger string) *RiskLevelChanged {
	return &RiskLevelChanged{
		BaseEvent: sharedDomain.NewBaseEvent(trainerID, aggregateType, RoutingRiskChanged),
		TrainerID: trainerID,
		From:      from,
		To:        to,
		Inputs:    in,
		Trigger:   trigger,
	}
}
