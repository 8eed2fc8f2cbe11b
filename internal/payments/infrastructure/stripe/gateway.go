package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// disputePageSize is the page size of a dispute listing. The iterator
// follows every page.
const disputePageSize = 100

// BreakerConfig configures the circuit breaker around processor calls.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open.
	Timeout     time.Duration
	MaxRequests uint32
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// Gateway implements domain.PaymentGateway on the Stripe API.
type Gateway struct {
	api     *client.API
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewGateway creates a gateway for the secret API key.
func NewGateway(apiKey string, cfg BreakerConfig, logger *slog.Logger) *Gateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return newGateway(api, cfg, logger)
}

// NewGatewayWithBackends creates a gateway over custom backends, e.g. a
// stub server in tests.
func NewGatewayWithBackends(apiKey string, backends *stripego.Backends, cfg BreakerConfig, logger *slog.Logger) *Gateway {
	api := &client.API{}
	api.Init(apiKey, backends)
	return newGateway(api, cfg, logger)
}

func newGateway(api *client.API, cfg BreakerConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrUnknownEntity)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Gateway{api: api, breaker: breaker, logger: logger}
}

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (g *Gateway) BreakerState() string {
	return g.breaker.State().String()
}

// RetrieveSubscription implements domain.PaymentGateway.
func (g *Gateway) RetrieveSubscription(ctx context.Context, externalID string) (*domain.SubscriptionSnapshot, error) {
	out, err := g.call("retrieve subscription", func() (any, error) {
		params := &stripego.SubscriptionParams{}
		params.Context = ctx
		return g.api.Subscriptions.Get(externalID, params)
	})
	if err != nil {
		return nil, err
	}
	return subscriptionSnapshot(out.(*stripego.Subscription)), nil
}

// RetrieveAccount implements domain.PaymentGateway.
func (g *Gateway) RetrieveAccount(ctx context.Context, accountRef string) (*domain.AccountSnapshot, error) {
	out, err := g.call("retrieve account", func() (any, error) {
		params := &stripego.AccountParams{}
		params.Context = ctx
		return g.api.Accounts.GetByID(accountRef, params)
	})
	if err != nil {
		return nil, err
	}
	return accountSnapshot(out.(*stripego.Account)), nil
}

// ListDisputes implements domain.PaymentGateway. Disputes are listed on the
// connected account.
func (g *Gateway) ListDisputes(ctx context.Context, accountRef string) ([]domain.DisputeSnapshot, error) {
	out, err := g.call("list disputes", func() (any, error) {
		params := &stripego.DisputeListParams{}
		params.Context = ctx
		params.Limit = stripego.Int64(disputePageSize)
		params.SetStripeAccount(accountRef)

		var disputes []domain.DisputeSnapshot
		iter := g.api.Disputes.List(params)
		for iter.Next() {
			disputes = append(disputes, disputeSnapshot(iter.Dispute()))
		}
		return disputes, iter.Err()
	})
	if err != nil {
		return nil, err
	}
	disputes, _ := out.([]domain.DisputeSnapshot)
	return disputes, nil
}

func (g *Gateway) call(op string, fn func() (any, error)) (any, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		out, err := fn()
		if err != nil {
			return nil, classify(op, err)
		}
		return out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.Transient(op, err)
	}
	return out, err
}

// classify maps Stripe errors onto domain errors.
func classify(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripego.ErrorCodeResourceMissing {
			return fmt.Errorf("%s: %w: %s", op, domain.ErrUnknownEntity, stripeErr.Msg)
		}
	}
	return domain.Transient(op, err)
}

func subscriptionSnapshot(s *stripego.Subscription) *domain.SubscriptionSnapshot {
	snap := &domain.SubscriptionSnapshot{
		ExternalID:         s.ID,
		Status:             domain.SubscriptionStatus(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
	}
	if s.CanceledAt > 0 {
		t := unixTime(s.CanceledAt)
		snap.CanceledAt = &t
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		snap.UnitAmount = s.Items.Data[0].Price.UnitAmount
		snap.Currency = string(s.Items.Data[0].Price.Currency)
	}
	return snap
}

func accountSnapshot(a *stripego.Account) *domain.AccountSnapshot {
	snap := &domain.AccountSnapshot{
		ID:               a.ID,
		DetailsSubmitted: a.DetailsSubmitted,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
	}
	if a.Requirements != nil {
		snap.CurrentlyDue = a.Requirements.CurrentlyDue
		snap.PastDue = a.Requirements.PastDue
	}
	return snap
}

func disputeSnapshot(d *stripego.Dispute) domain.DisputeSnapshot {
	snap := domain.DisputeSnapshot{
		ID:       d.ID,
		Status:   string(d.Status),
		Amount:   d.Amount,
		Currency: string(d.Currency),
		Reason:   string(d.Reason),
	}
	if d.Charge != nil {
		snap.ChargeID = d.Charge.ID
	}
	return snap
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
