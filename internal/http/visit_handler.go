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

type visitService interface {
	CheckIn(ctx context.Context, memberID string) (persistence.Visit, error)
	CheckOut(ctx context.Context, memberID string) (persistence.Visit, error)
	History(ctx context.Context, memberID string) ([]persistence.Visit, error)
}

// VisitHandler exposes member check-in and check-out.
type VisitHandler struct {
	service   visitService
	responder responder
	logger    *slog.Logger
}

func NewVisitHandler(service visitService, logger *slog.Logger) *VisitHandler {
	base := defaultLogger(logger)
	return &VisitHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *VisitHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "VisitHandler", operation, attrs...)
}

// CheckIn handles POST /members/{memberID}/checkin.
func (h *VisitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID := strings.TrimSpace(chi.URLParam(r, "memberID"))
	if memberID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "CheckIn", "member_id", memberID)

	visit, err := h.service.CheckIn(r.Context(), memberID)
	if err != nil {
		logger.ErrorContext(r.Context(), "check-in failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("visit_id", visit.ID).InfoContext(r.Context(), "member checked in")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, visitResponse{Visit: toVisitDTO(visit)})
}

// CheckOut handles POST /members/{memberID}/checkout.
func (h *VisitHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID := strings.TrimSpace(chi.URLParam(r, "memberID"))
	if memberID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "CheckOut", "member_id", memberID)

	visit, err := h.service.CheckOut(r.Context(), memberID)
	if err != nil {
		logger.ErrorContext(r.Context(), "check-out failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("visit_id", visit.ID).InfoContext(r.Context(), "member checked out")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, visitResponse{Visit: toVisitDTO(visit)})
}

// History handles GET /members/{memberID}/visits.
func (h *VisitHandler) History(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID := strings.TrimSpace(chi.URLParam(r, "memberID"))
	if memberID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	visits, err := h.service.History(r.Context(), memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]visitDTO, 0, len(visits))
	for _, visit := range visits {
		out = append(out, toVisitDTO(visit))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listVisitsResponse{Visits: out})
}

type visitResponse struct {
	Visit visitDTO `json:"visit"`
}

type listVisitsResponse struct {
	Visits []visitDTO `json:"visits"`
}
