package sqlite

import (
	"context"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// circulationTx adapts one open *sql.Tx to the transactional view used by the
// circulation workflows. All methods delegate to the same row-level helpers
// the repository methods use, so queries behave identically inside and
// outside a transaction.
type circulationTx struct {
	q dbtx
}

var _ persistence.CirculationTx = (*circulationTx)(nil)

func (t *circulationTx) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	return getMember(ctx, t.q, id)
}

func (t *circulationTx) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	return getBook(ctx, t.q, id)
}

func (t *circulationTx) GetCopy(ctx context.Context, id string) (persistence.BookCopy, error) {
	return getCopy(ctx, t.q, id)
}

func (t *circulationTx) UpdateCopyStatus(ctx context.Context, copyID string, status circulation.CopyStatus) error {
	return updateCopyStatus(ctx, t.q, copyID, status, formatTime(time.Now()))
}

func (t *circulationTx) HasOpenVisit(ctx context.Context, memberID string) (bool, error) {
	return hasOpenVisit(ctx, t.q, memberID)
}

func (t *circulationTx) CreateLoan(ctx context.Context, loan persistence.Loan) error {
	return insertLoan(ctx, t.q, loan)
}

func (t *circulationTx) GetLoan(ctx context.Context, id string) (persistence.Loan, error) {
	return getLoan(ctx, t.q, id)
}

func (t *circulationTx) UpdateLoan(ctx context.Context, loan persistence.Loan) error {
	return updateLoan(ctx, t.q, loan)
}

func (t *circulationTx) CountActiveLoans(ctx context.Context, memberID string) (int, error) {
	return countActiveLoans(ctx, t.q, memberID)
}

func (t *circulationTx) CreatePenalty(ctx context.Context, penalty persistence.Penalty) error {
	return insertPenalty(ctx, t.q, penalty)
}

func (t *circulationTx) GetPenalty(ctx context.Context, id string) (persistence.Penalty, error) {
	return getPenalty(ctx, t.q, id)
}

func (t *circulationTx) GetPenaltyForLoan(ctx context.Context, loanID string) (persistence.Penalty, error) {
	return getPenaltyForLoan(ctx, t.q, loanID)
}

func (t *circulationTx) UpdatePenalty(ctx context.Context, penalty persistence.Penalty) error {
	return updatePenalty(ctx, t.q, penalty)
}

func (t *circulationTx) SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error) {
	return sumUnpaidPenalties(ctx, t.q, memberID)
}

func (t *circulationTx) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	return insertReservation(ctx, t.q, reservation)
}

func (t *circulationTx) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.q, id)
}

func (t *circulationTx) UpdateReservation(ctx context.Context, reservation persistence.Reservation) error {
	return updateReservation(ctx, t.q, reservation)
}

func (t *circulationTx) ReadyReservationForCopy(ctx context.Context, copyID string) (persistence.Reservation, error) {
	return readyReservationForCopy(ctx, t.q, copyID)
}

func (t *circulationTx) WaitingReservations(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	return waitingReservations(ctx, t.q, bookID)
}

func (t *circulationTx) NextQueuePosition(ctx context.Context, bookID string) (int, error) {
	return nextQueuePosition(ctx, t.q, bookID)
}
