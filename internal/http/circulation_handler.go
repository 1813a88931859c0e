package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/persistence"
)

type circulationService interface {
	Borrow(ctx context.Context, params application.BorrowParams) (application.LoanSummary, error)
	Return(ctx context.Context, loanID string) (application.ReturnSummary, error)
	GetLoan(ctx context.Context, loanID string) (persistence.Loan, error)
	LoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error)
}

// CirculationHandler exposes the borrow and return workflows.
type CirculationHandler struct {
	service   circulationService
	responder responder
	logger    *slog.Logger
}

func NewCirculationHandler(service circulationService, logger *slog.Logger) *CirculationHandler {
	base := defaultLogger(logger)
	return &CirculationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CirculationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CirculationHandler", operation, attrs...)
}

// Borrow handles POST /loans.
func (h *CirculationHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Borrow", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode borrow request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Borrow", "member_id", req.MemberID, "copy_id", req.CopyID)

	summary, err := h.service.Borrow(r.Context(), application.BorrowParams{
		MemberID: strings.TrimSpace(req.MemberID),
		CopyID:   strings.TrimSpace(req.CopyID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "borrow failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("loan_id", summary.Loan.ID).InfoContext(r.Context(), "copy borrowed")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, loanSummaryResponse{
		Loan:                 toLoanDTO(summary.Loan),
		FulfilledReservation: toReservationDTOPtr(summary.FulfilledReservation),
	})
}

// Return handles POST /loans/{loanID}/return.
func (h *CirculationHandler) Return(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	loanID := strings.TrimSpace(chi.URLParam(r, "loanID"))
	if loanID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Return", "loan_id", loanID)

	summary, err := h.service.Return(r.Context(), loanID)
	if err != nil {
		logger.ErrorContext(r.Context(), "return failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("overdue", summary.Overdue).InfoContext(r.Context(), "loan returned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, returnSummaryResponse{
		Loan:                toLoanDTO(summary.Loan),
		Overdue:             summary.Overdue,
		DaysOverdue:         summary.DaysOverdue,
		Penalty:             toPenaltyDTOPtr(summary.Penalty),
		PromotedReservation: toReservationDTOPtr(summary.PromotedReservation),
	})
}

// Get handles GET /loans/{loanID}.
func (h *CirculationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	loanID := strings.TrimSpace(chi.URLParam(r, "loanID"))
	if loanID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, loanResponse{Loan: toLoanDTO(loan)})
}

// ListForMember handles GET /members/{memberID}/loans.
func (h *CirculationHandler) ListForMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID := strings.TrimSpace(chi.URLParam(r, "memberID"))
	if memberID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	loans, err := h.service.LoansForMember(r.Context(), memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]loanDTO, 0, len(loans))
	for _, loan := range loans {
		out = append(out, toLoanDTO(loan))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLoansResponse{Loans: out})
}

type borrowRequest struct {
	MemberID string `json:"member_id"`
	CopyID   string `json:"copy_id"`
}

type loanSummaryResponse struct {
	Loan                 loanDTO         `json:"loan"`
	FulfilledReservation *reservationDTO `json:"fulfilled_reservation,omitempty"`
}

type returnSummaryResponse struct {
	Loan                loanDTO         `json:"loan"`
	Overdue             bool            `json:"overdue"`
	DaysOverdue         int             `json:"days_overdue"`
	Penalty             *penaltyDTO     `json:"penalty,omitempty"`
	PromotedReservation *reservationDTO `json:"promoted_reservation,omitempty"`
}

type loanResponse struct {
	Loan loanDTO `json:"loan"`
}

type listLoansResponse struct {
	Loans []loanDTO `json:"loans"`
}
