// Package subscribers holds bus consumers of payments events.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
)

// MetricAlertsRaised counts compliance alerts, tagged with reason.
const MetricAlertsRaised = "alerts.raised"

// maxRecentAlerts bounds the in-memory alert history.
const maxRecentAlerts = 100

// Alert is a compliance signal worth an operator's attention.
type Alert struct {
	TrainerID uuid.UUID `json:"trainer_id"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail"`
}

type riskChangedPayload struct {
	TrainerID uuid.UUID        `json:"trainer_id"`
	From      domain.RiskLevel `json:"from"`
	To        domain.RiskLevel `json:"to"`
	Trigger   string           `json:"trigger"`
}

type activityPayload struct {
	TrainerID    uuid.UUID           `json:"trainer_id"`
	ActivityType domain.ActivityType `json:"activity_type"`
	Severity     domain.Severity     `json:"severity"`
	Description  string              `json:"description"`
}

// RiskAlertSubscriber raises alerts for risk escalations and high severity
// activity.
type RiskAlertSubscriber struct {
	logger  *slog.Logger
	metrics observability.Metrics

	mu     sync.Mutex
	recent []Alert
}

// NewRiskAlertSubscriber creates the subscriber.
func NewRiskAlertSubscriber(logger *slog.Logger, metrics observability.Metrics) *RiskAlertSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &RiskAlertSubscriber{logger: logger, metrics: metrics}
}

// Bindings returns the routing keys this subscriber handles.
func (s *RiskAlertSubscriber) Bindings() []string {
	return []string{domain.RoutingRiskChanged, domain.RoutingActivityRecorded}
}

// Handle processes an event.
func (s *RiskAlertSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	switch event.RoutingKey {
	case domain.RoutingRiskChanged:
		var p riskChangedPayload
		if err := event.Decode(&p); err != nil {
			return fmt.Errorf("decode risk change: %w", err)
		}
		if p.To.Rank() <= p.From.Rank() {
			return nil
		}
		s.raise(ctx, Alert{
			TrainerID: p.TrainerID,
			Reason:    "risk_escalated",
			Detail:    fmt.Sprintf("%s -> %s (%s)", p.From, p.To, p.Trigger),
		})
	case domain.RoutingActivityRecorded:
		var p activityPayload
		if err := event.Decode(&p); err != nil {
			return fmt.Errorf("decode activity: %w", err)
		}
		if p.Severity != domain.SeverityHigh {
			return nil
		}
		s.raise(ctx, Alert{
			TrainerID: p.TrainerID,
			Reason:    string(p.ActivityType),
			Detail:    p.Description,
		})
	}
	return nil
}

// Recent returns the latest alerts, oldest first.
func (s *RiskAlertSubscriber) Recent() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.recent...)
}

func (s *RiskAlertSubscriber) raise(ctx context.Context, alert Alert) {
	s.mu.Lock()
	s.recent = append(s.recent, alert)
	if len(s.recent) > maxRecentAlerts {
		s.recent = s.recent[len(s.recent)-maxRecentAlerts:]
	}
	s.mu.Unlock()

	s.metrics.Counter(MetricAlertsRaised, 1, observability.T("reason", alert.Reason))
	s.logger.WarnContext(ctx, "compliance alert",
		"trainer_id", alert.TrainerID,
		"reason", alert.Reason,
		"detail", alert.Detail,
	)
}

var _ eventbus.EventConsumer = (*RiskAlertSubscriber)(nil)
