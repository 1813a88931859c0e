package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/persistence"
)

type penaltyService interface {
	Pay(ctx context.Context, penaltyID string) (persistence.Penalty, error)
	Get(ctx context.Context, penaltyID string) (persistence.Penalty, error)
	StatementForMember(ctx context.Context, memberID string) (application.PenaltyStatement, error)
}

// PenaltyHandler exposes the penalty ledger.
type PenaltyHandler struct {
	service   penaltyService
	responder responder
	logger    *slog.Logger
}

func NewPenaltyHandler(service penaltyService, logger *slog.Logger) *PenaltyHandler {
	base := defaultLogger(logger)
	return &PenaltyHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PenaltyHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PenaltyHandler", operation, attrs...)
}

// Pay handles POST /penalties/{penaltyID}/pay.
func (h *PenaltyHandler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	penaltyID := strings.TrimSpace(chi.URLParam(r, "penaltyID"))
	if penaltyID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Pay", "penalty_id", penaltyID)

	penalty, err := h.service.Pay(r.Context(), penaltyID)
	if err != nil {
		logger.ErrorContext(r.Context(), "payment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("amount", penalty.Amount.String()).InfoContext(r.Context(), "penalty paid")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, penaltyResponse{Penalty: toPenaltyDTO(penalty)})
}

// Get handles GET /penalties/{penaltyID}.
func (h *PenaltyHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	penaltyID := strings.TrimSpace(chi.URLParam(r, "penaltyID"))
	if penaltyID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	penalty, err := h.service.Get(r.Context(), penaltyID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, penaltyResponse{Penalty: toPenaltyDTO(penalty)})
}

// Statement handles GET /members/{memberID}/penalties.
func (h *PenaltyHandler) Statement(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID := strings.TrimSpace(chi.URLParam(r, "memberID"))
	if memberID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	statement, err := h.service.StatementForMember(r.Context(), memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	penalties := make([]penaltyDTO, 0, len(statement.Penalties))
	for _, penalty := range statement.Penalties {
		penalties = append(penalties, toPenaltyDTO(penalty))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, penaltyStatementResponse{
		Penalties:   penalties,
		UnpaidTotal: statement.UnpaidTotal.String(),
	})
}

type penaltyResponse struct {
	Penalty penaltyDTO `json:"penalty"`
}

type penaltyStatementResponse struct {
	Penalties   []penaltyDTO `json:"penalties"`
	UnpaidTotal string       `json:"unpaid_total"`
}
