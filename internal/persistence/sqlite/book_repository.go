package sqlite

import (
	"context"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

const bookColumns = `id, title, author, isbn, created_at, updated_at`
const copyColumns = `id, book_id, barcode, usage_type, status, created_at, updated_at`

// CreateBook inserts a new catalog title.
func (s *Store) CreateBook(ctx context.Context, book persistence.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.ISBN,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	return mapError(err)
}

// UpdateBook updates an existing catalog title.
func (s *Store) UpdateBook(ctx context.Context, book persistence.Book) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, isbn = ?, updated_at = ? WHERE id = ?`,
		book.Title,
		book.Author,
		book.ISBN,
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	return getBook(ctx, s.db, id)
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]persistence.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var books []persistence.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// DeleteBook removes a book by ID. Copies and reservations referencing the
// book keep it alive through foreign keys.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// CreateCopy inserts a new physical copy.
func (s *Store) CreateCopy(ctx context.Context, copy persistence.BookCopy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_copies (`+copyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		copy.ID,
		copy.BookID,
		copy.Barcode,
		string(copy.UsageType),
		string(copy.Status),
		formatTime(copy.CreatedAt),
		formatTime(copy.UpdatedAt),
	)
	return mapError(err)
}

// UpdateCopy updates a copy's catalog attributes and status.
func (s *Store) UpdateCopy(ctx context.Context, copy persistence.BookCopy) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE book_copies SET barcode = ?, usage_type = ?, status = ?, updated_at = ? WHERE id = ?`,
		copy.Barcode,
		string(copy.UsageType),
		string(copy.Status),
		formatTime(copy.UpdatedAt),
		copy.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetCopy retrieves a copy by ID.
func (s *Store) GetCopy(ctx context.Context, id string) (persistence.BookCopy, error) {
	return getCopy(ctx, s.db, id)
}

// GetCopyByBarcode retrieves a copy by its barcode.
func (s *Store) GetCopyByBarcode(ctx context.Context, barcode string) (persistence.BookCopy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+copyColumns+` FROM book_copies WHERE barcode = ?`, barcode)
	return scanCopy(row)
}

// ListCopiesForBook returns all copies of a book ordered by barcode.
func (s *Store) ListCopiesForBook(ctx context.Context, bookID string) ([]persistence.BookCopy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+copyColumns+` FROM book_copies WHERE book_id = ? ORDER BY barcode ASC`, bookID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var copies []persistence.BookCopy
	for rows.Next() {
		copy, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		copies = append(copies, copy)
	}
	return copies, rows.Err()
}

func getBook(ctx context.Context, q dbtx, id string) (persistence.Book, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	return scanBook(row)
}

func getCopy(ctx context.Context, q dbtx, id string) (persistence.BookCopy, error) {
	row := q.QueryRowContext(ctx, `SELECT `+copyColumns+` FROM book_copies WHERE id = ?`, id)
	return scanCopy(row)
}

func updateCopyStatus(ctx context.Context, q dbtx, copyID string, status circulation.CopyStatus, updatedAt string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE book_copies SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), updatedAt, copyID)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

func scanBook(row rowScanner) (persistence.Book, error) {
	var book persistence.Book
	var createdAt, updatedAt string

	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Book{}, mapError(err)
	}

	if book.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Book{}, err
	}
	if book.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Book{}, err
	}
	return book, nil
}

func scanCopy(row rowScanner) (persistence.BookCopy, error) {
	var copy persistence.BookCopy
	var usageType, status, createdAt, updatedAt string

	err := row.Scan(&copy.ID, &copy.BookID, &copy.Barcode, &usageType, &status, &createdAt, &updatedAt)
	if err != nil {
		return persistence.BookCopy{}, mapError(err)
	}

	copy.UsageType = circulation.UsageType(usageType)
	copy.Status = circulation.CopyStatus(status)
	if copy.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.BookCopy{}, err
	}
	if copy.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.BookCopy{}, err
	}
	return copy, nil
}
