package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/stripe"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

// MaxWebhookBodyBytes bounds the webhook payload read from the request.
const MaxWebhookBodyBytes = 1 << 20

// EventAuthenticator verifies and parses a signed processor delivery.
type EventAuthenticator interface {
	Authenticate(payload []byte, signature string) (*domain.Event, error)
}

// EventReconciler applies an authenticated event.
type EventReconciler interface {
	Reconcile(ctx context.Context, ev *domain.Event) (domain.ApplyResult, error)
}

// WebhookHandler receives processor webhooks.
type WebhookHandler struct {
	auth       EventAuthenticator
	reconciler EventReconciler
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(auth EventAuthenticator, reconciler EventReconciler, metrics observability.Metrics, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &WebhookHandler{
		auth:       auth,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleStripe handles POST /webhooks/stripe
//
// Duplicates and events outside the handled set are acknowledged with 200 so
// the processor stops retrying them. Only transient failures return 500.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
	if err != nil {
		h.metrics.Counter(observability.MetricWebhookRejected, 1)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	h.metrics.Histogram(observability.MetricWebhookPayloadBytes, float64(len(body)))

	ev, err := h.auth.Authenticate(body, r.Header.Get(stripe.SignatureHeader))
	if err != nil {
		h.metrics.Counter(observability.MetricWebhookRejected, 1)
		h.logger.WarnContext(r.Context(), "webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid webhook signature")
		return
	}

	ctx := observability.WithCorrelationID(r.Context(), ev.ID)
	result, err := h.reconciler.Reconcile(ctx, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to process webhook",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	h.logger.DebugContext(ctx, "webhook processed",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"result", result.String(),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
