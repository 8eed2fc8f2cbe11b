package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
)

// ComplianceHandler serves the trainer compliance API.
type ComplianceHandler struct {
	sync    *application.AccountSynchronizer
	terms   *application.TermsService
	queries *application.ComplianceQueries
	logger  *slog.Logger
}

// ComplianceHandlerConfig holds dependencies for the compliance handler.
type ComplianceHandlerConfig struct {
	Synchronizer *application.AccountSynchronizer
	Terms        *application.TermsService
	Queries      *application.ComplianceQueries
	Logger       *slog.Logger
}

// NewComplianceHandler creates a new compliance handler.
func NewComplianceHandler(cfg ComplianceHandlerConfig) *ComplianceHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ComplianceHandler{
		sync:    cfg.Synchronizer,
		terms:   cfg.Terms,
		queries: cfg.Queries,
		logger:  cfg.Logger,
	}
}

// SyncAccountStatus handles POST /api/v1/trainers/{trainerID}/account-status
func (h *ComplianceHandler) SyncAccountStatus(w http.ResponseWriter, r *http.Request) {
	trainerID, r, ok := parseTrainerID(w, r)
	if !ok {
		return
	}

	status, err := h.sync.Sync(r.Context(), trainerID)
	if err != nil {
		h.writeServiceError(w, r, "sync account status", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// AcceptTerms handles POST /api/v1/trainers/{trainerID}/terms
func (h *ComplianceHandler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	trainerID, r, ok := parseTrainerID(w, r)
	if !ok {
		return
	}

	if err := h.terms.AcceptTerms(r.Context(), trainerID); err != nil {
		h.writeServiceError(w, r, "accept terms", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"terms_accepted": true})
}

// GetComplianceSummary handles GET /api/v1/trainers/{trainerID}/compliance
func (h *ComplianceHandler) GetComplianceSummary(w http.ResponseWriter, r *http.Request) {
	trainerID, r, ok := parseTrainerID(w, r)
	if !ok {
		return
	}

	summary, err := h.queries.ComplianceSummary(r.Context(), trainerID)
	if err != nil {
		h.writeServiceError(w, r, "get compliance summary", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetRevenue handles GET /api/v1/trainers/{trainerID}/revenue
func (h *ComplianceHandler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	trainerID, r, ok := parseTrainerID(w, r)
	if !ok {
		return
	}

	revenue, err := h.queries.TrainerRevenue(r.Context(), trainerID)
	if err != nil {
		h.writeServiceError(w, r, "get revenue", err)
		return
	}

	writeJSON(w, http.StatusOK, revenue)
}

// ListRiskAccounts handles GET /api/v1/admin/risk-accounts
func (h *ComplianceHandler) ListRiskAccounts(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", application.DefaultRiskAccountsLimit)

	accounts, err := h.queries.RiskAccounts(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "list risk accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"total":    len(accounts),
	})
}

func (h *ComplianceHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "Account sync already in progress")
	case errors.Is(err, domain.ErrTrainerNotFound):
		writeError(w, http.StatusNotFound, "Trainer not found")
	case errors.Is(err, domain.ErrTransient):
		h.logger.ErrorContext(r.Context(), "failed to "+op, "error", err)
		writeError(w, http.StatusBadGateway, "Payment processor unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "failed to "+op, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}

// parseTrainerID reads the trainer path value and tags the request context
// with it for logging.
func parseTrainerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, *http.Request, bool) {
	id, err := uuid.Parse(r.PathValue("trainerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid trainer ID")
		return uuid.Nil, r, false
	}
	return id, r.WithContext(observability.WithTrainerID(r.Context(), id.String())), true
}

func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
