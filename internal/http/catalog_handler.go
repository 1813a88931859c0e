package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

type catalogService interface {
	CreateBook(ctx context.Context, input application.BookInput) (persistence.Book, error)
	UpdateBook(ctx context.Context, bookID string, input application.BookInput) (persistence.Book, error)
	GetBook(ctx context.Context, bookID string) (persistence.Book, error)
	ListBooks(ctx context.Context) ([]persistence.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
	AddCopy(ctx context.Context, bookID string, input application.CopyInput) (persistence.BookCopy, error)
	GetCopy(ctx context.Context, copyID string) (persistence.BookCopy, error)
	ListCopies(ctx context.Context, bookID string) ([]persistence.BookCopy, error)
	RetireCopy(ctx context.Context, copyID string, to circulation.CopyStatus) (persistence.BookCopy, error)
}

// CatalogHandler exposes titles and copies.
type CatalogHandler struct {
	service   catalogService
	responder responder
	logger    *slog.Logger
}

func NewCatalogHandler(service catalogService, logger *slog.Logger) *CatalogHandler {
	base := defaultLogger(logger)
	return &CatalogHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CatalogHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CatalogHandler", operation, attrs...)
}

// CreateBook handles POST /books.
func (h *CatalogHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateBook", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateBook")

	book, err := h.service.CreateBook(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "book creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("book_id", book.ID).InfoContext(r.Context(), "book created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookResponse{Book: toBookDTO(book)})
}

// UpdateBook handles PUT /books/{bookID}.
func (h *CatalogHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateBook", "book_id", bookID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateBook", "book_id", bookID)

	book, err := h.service.UpdateBook(r.Context(), bookID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "book update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

// GetBook handles GET /books/{bookID}.
func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{Book: toBookDTO(book)})
}

// ListBooks handles GET /books.
func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bookDTO, 0, len(books))
	for _, book := range books {
		out = append(out, toBookDTO(book))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBooksResponse{Books: out})
}

// DeleteBook handles DELETE /books/{bookID}.
func (h *CatalogHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "DeleteBook", "book_id", bookID)
	if err := h.service.DeleteBook(r.Context(), bookID); err != nil {
		logger.ErrorContext(r.Context(), "book delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// AddCopy handles POST /books/{bookID}/copies.
func (h *CatalogHandler) AddCopy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "AddCopy", "book_id", bookID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode copy request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "AddCopy", "book_id", bookID)

	copy, err := h.service.AddCopy(r.Context(), bookID, application.CopyInput{
		Barcode:   req.Barcode,
		UsageType: circulation.UsageType(req.UsageType),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "copy creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("copy_id", copy.ID).InfoContext(r.Context(), "copy added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, copyResponse{Copy: toCopyDTO(copy)})
}

// ListCopies handles GET /books/{bookID}/copies.
func (h *CatalogHandler) ListCopies(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID := strings.TrimSpace(chi.URLParam(r, "bookID"))
	if bookID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	copies, err := h.service.ListCopies(r.Context(), bookID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]copyDTO, 0, len(copies))
	for _, copy := range copies {
		out = append(out, toCopyDTO(copy))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCopiesResponse{Copies: out})
}

// GetCopy handles GET /copies/{copyID}.
func (h *CatalogHandler) GetCopy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	copyID := strings.TrimSpace(chi.URLParam(r, "copyID"))
	if copyID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	copy, err := h.service.GetCopy(r.Context(), copyID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, copyResponse{Copy: toCopyDTO(copy)})
}

// RetireCopy handles POST /copies/{copyID}/retire.
func (h *CatalogHandler) RetireCopy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	copyID := strings.TrimSpace(chi.URLParam(r, "copyID"))
	if copyID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req retireCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "RetireCopy", "copy_id", copyID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode retire request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "RetireCopy", "copy_id", copyID)

	copy, err := h.service.RetireCopy(r.Context(), copyID, circulation.CopyStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		logger.ErrorContext(r.Context(), "copy retirement failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "copy retired")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, copyResponse{Copy: toCopyDTO(copy)})
}

type bookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

func (r bookRequest) toInput() application.BookInput {
	return application.BookInput{
		Title:  strings.TrimSpace(r.Title),
		Author: strings.TrimSpace(r.Author),
		ISBN:   strings.TrimSpace(r.ISBN),
	}
}

type copyRequest struct {
	Barcode   string `json:"barcode"`
	UsageType string `json:"usage_type"`
}

type retireCopyRequest struct {
	Status string `json:"status"`
}

type bookResponse struct {
	Book bookDTO `json:"book"`
}

type listBooksResponse struct {
	Books []bookDTO `json:"books"`
}

type copyResponse struct {
	Copy copyDTO `json:"copy"`
}

type listCopiesResponse struct {
	Copies []copyDTO `json:"copies"`
}
