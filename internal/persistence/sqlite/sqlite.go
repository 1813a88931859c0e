// Package sqlite implements the persistence contracts on a SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/library-circulation/internal/persistence"
	_ "modernc.org/sqlite"
)

// Store provides repository access backed by a single SQLite database. One
// Store value implements every repository interface plus the transactional
// CirculationStore contract.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at the given DSN.
//
// Transactions are opened with BEGIN IMMEDIATE (via _txlock), which takes
// the database write lock before the first read. Together with a single
// connection this serialises the circulation workflows: two concurrent
// borrow attempts for one copy can never both observe it AVAILABLE.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// The write lock is database wide; extra connections only add
	// SQLITE_BUSY churn. In-memory databases additionally require a single
	// connection to see a single database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

func normalizeDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:library.db"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside one immediate transaction. Any error from fn rolls
// every write back; SQLITE_BUSY failures are retried with backoff before the
// whole operation is surfaced as failed.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.CirculationTx) error) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(&circulationTx{q: tx}); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: failed to commit transaction: %w", err)
		}
		return nil
	})
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the row-level query
// helpers serve the repository methods and the transactional view alike.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapError translates driver errors into persistence sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// withRetry retries fn with exponential backoff while the database reports
// busy. Constraint and not-found errors surface immediately.
func withRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 3
	delay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
	}
	return fmt.Errorf("sqlite: operation failed after %d attempts: %w", maxAttempts, err)
}

// Timestamps are persisted as RFC3339 UTC strings so that SQL string
// comparison agrees with chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	clone := value.String
	return &clone
}
