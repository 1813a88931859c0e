package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/library-circulation/internal/persistence"
	"github.com/example/library-circulation/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// storage instance for integration-style persistence tests.
type SQLiteHarness struct {
	Store        *sqlite.Store
	Members      persistence.MemberRepository
	Books        persistence.BookRepository
	Visits       persistence.VisitRepository
	Loans        persistence.LoanRepository
	Penalties    persistence.PenaltyRepository
	Reservations persistence.ReservationRepository
	Circulation  persistence.CirculationStore

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "library.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:        storage,
		Members:      storage,
		Books:        storage,
		Visits:       storage,
		Loans:        storage,
		Penalties:    storage,
		Reservations: storage,
		Circulation:  storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
