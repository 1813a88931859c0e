package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// CatalogService manages titles and their physical copies. Circulation owns
// a copy's status while it is out; the catalog can only retire copies that
// are neither loaned nor held.
type CatalogService struct {
	books       persistence.BookRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCatalogService constructs a catalog service with the provided dependencies.
func NewCatalogService(books persistence.BookRepository, idGenerator func() string, now func() time.Time) *CatalogService {
	return NewCatalogServiceWithLogger(books, idGenerator, now, nil)
}

// NewCatalogServiceWithLogger constructs a catalog service with a specified logger.
func NewCatalogServiceWithLogger(books persistence.BookRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CatalogService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CatalogService{books: books, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// CreateBook adds a title to the catalog.
func (s *CatalogService) CreateBook(ctx context.Context, input BookInput) (book persistence.Book, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBook")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("book_id", book.ID).InfoContext(ctx, "book created")
	}()

	vErr := validateBookInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	book = persistence.Book{
		ID:        s.idGenerator(),
		Title:     strings.TrimSpace(input.Title),
		Author:    strings.TrimSpace(input.Author),
		ISBN:      strings.TrimSpace(input.ISBN),
		CreatedAt: s.now(),
	}
	book.UpdatedAt = book.CreatedAt

	if err = mapStoreError(s.books.CreateBook(ctx, book)); err != nil {
		book = persistence.Book{}
		return
	}
	return
}

// UpdateBook changes a title's catalog attributes.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, input BookInput) (book persistence.Book, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBook",
		"book_id", bookID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book updated")
	}()

	existing, getErr := s.books.GetBook(ctx, bookID)
	if getErr != nil {
		err = mapStoreError(getErr)
		return
	}

	vErr := validateBookInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Title = strings.TrimSpace(input.Title)
	existing.Author = strings.TrimSpace(input.Author)
	existing.ISBN = strings.TrimSpace(input.ISBN)
	existing.UpdatedAt = s.now()

	if err = mapStoreError(s.books.UpdateBook(ctx, existing)); err != nil {
		return
	}
	book = existing
	return
}

// GetBook returns a title by ID.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (persistence.Book, error) {
	if s == nil {
		return persistence.Book{}, fmt.Errorf("CatalogService is nil")
	}
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return persistence.Book{}, mapStoreError(err)
	}
	return book, nil
}

// ListBooks returns the catalog.
func (s *CatalogService) ListBooks(ctx context.Context) ([]persistence.Book, error) {
	if s == nil {
		return nil, fmt.Errorf("CatalogService is nil")
	}
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return books, nil
}

// DeleteBook removes a title. Titles with copies or reservations are kept
// alive by foreign keys.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) error {
	if s == nil {
		return fmt.Errorf("CatalogService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteBook",
		"book_id", bookID,
	)
	if err := mapStoreError(s.books.DeleteBook(ctx, bookID)); err != nil {
		logger.ErrorContext(ctx, "failed to delete book", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "book deleted")
	return nil
}

// AddCopy registers a physical copy of a title. New copies start AVAILABLE.
func (s *CatalogService) AddCopy(ctx context.Context, bookID string, input CopyInput) (copy persistence.BookCopy, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddCopy",
		"book_id", bookID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add copy", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("copy_id", copy.ID).InfoContext(ctx, "copy added")
	}()

	if _, err = s.GetBook(ctx, bookID); err != nil {
		return
	}

	vErr := validateCopyInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	copy = persistence.BookCopy{
		ID:        s.idGenerator(),
		BookID:    bookID,
		Barcode:   strings.TrimSpace(input.Barcode),
		UsageType: input.UsageType,
		Status:    circulation.CopyAvailable,
		CreatedAt: s.now(),
	}
	copy.UpdatedAt = copy.CreatedAt

	if err = mapStoreError(s.books.CreateCopy(ctx, copy)); err != nil {
		copy = persistence.BookCopy{}
		return
	}
	return
}

// GetCopy returns a copy by ID.
func (s *CatalogService) GetCopy(ctx context.Context, copyID string) (persistence.BookCopy, error) {
	if s == nil {
		return persistence.BookCopy{}, fmt.Errorf("CatalogService is nil")
	}
	copy, err := s.books.GetCopy(ctx, copyID)
	if err != nil {
		return persistence.BookCopy{}, mapStoreError(err)
	}
	return copy, nil
}

// GetCopyByBarcode returns a copy by its barcode.
func (s *CatalogService) GetCopyByBarcode(ctx context.Context, barcode string) (persistence.BookCopy, error) {
	if s == nil {
		return persistence.BookCopy{}, fmt.Errorf("CatalogService is nil")
	}
	copy, err := s.books.GetCopyByBarcode(ctx, barcode)
	if err != nil {
		return persistence.BookCopy{}, mapStoreError(err)
	}
	return copy, nil
}

// ListCopies returns a book's copies.
func (s *CatalogService) ListCopies(ctx context.Context, bookID string) ([]persistence.BookCopy, error) {
	if s == nil {
		return nil, fmt.Errorf("CatalogService is nil")
	}
	copies, err := s.books.ListCopiesForBook(ctx, bookID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return copies, nil
}

// RetireCopy marks a copy DAMAGED or LOST. Copies out on loan or held for a
// pickup keep circulating state and are rejected.
func (s *CatalogService) RetireCopy(ctx context.Context, copyID string, to circulation.CopyStatus) (copy persistence.BookCopy, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RetireCopy",
		"copy_id", copyID,
		"target_status", string(to),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to retire copy", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "copy retired")
	}()

	existing, getErr := s.books.GetCopy(ctx, copyID)
	if getErr != nil {
		err = mapStoreError(getErr)
		return
	}

	if to != circulation.CopyDamaged && to != circulation.CopyLost {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("%q is not a retirement status", string(to)))
		err = vErr
		return
	}

	retired, trErr := existing.Status.Retire(to)
	if trErr != nil {
		err = ruleViolation(RuleCopyInCirculation, "cannot mark copy %s while it is %s", to, existing.Status)
		return
	}

	existing.Status = retired
	existing.UpdatedAt = s.now()
	if err = mapStoreError(s.books.UpdateCopy(ctx, existing)); err != nil {
		return
	}
	copy = existing
	return
}

func validateBookInput(input BookInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if strings.TrimSpace(input.Author) == "" {
		vErr.add("author", "author is required")
	}

	return vErr
}

func validateCopyInput(input CopyInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Barcode) == "" {
		vErr.add("barcode", "barcode is required")
	}
	if !input.UsageType.Valid() {
		vErr.add("usage_type", fmt.Sprintf("unknown usage type %q", string(input.UsageType)))
	}

	return vErr
}
