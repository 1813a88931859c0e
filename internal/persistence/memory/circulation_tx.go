package memory

import (
	"context"
	"sort"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// memoryTx is the transactional view handed to workflow closures. The store
// lock is held for the whole transaction; on error WithinTx restores the
// pre-transaction snapshot.
type memoryTx struct {
	store *Store
}

var _ persistence.CirculationTx = (*memoryTx)(nil)

func (t *memoryTx) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	return getMember(t.store, id)
}

func (t *memoryTx) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	return getBook(t.store, id)
}

func (t *memoryTx) GetCopy(ctx context.Context, id string) (persistence.BookCopy, error) {
	return getCopy(t.store, id)
}

func (t *memoryTx) UpdateCopyStatus(ctx context.Context, copyID string, status circulation.CopyStatus) error {
	copy, ok := t.store.copies[copyID]
	if !ok {
		return persistence.ErrNotFound
	}
	copy.Status = status
	copy.UpdatedAt = time.Now()
	t.store.copies[copyID] = copy
	return nil
}

func (t *memoryTx) HasOpenVisit(ctx context.Context, memberID string) (bool, error) {
	for _, visit := range t.store.visits {
		if visit.MemberID == memberID && visit.CheckedOutAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) CreateLoan(ctx context.Context, loan persistence.Loan) error {
	if _, ok := t.store.loans[loan.ID]; ok {
		return persistence.ErrDuplicate
	}
	if loan.Status == circulation.LoanActive {
		for _, existing := range t.store.loans {
			if existing.CopyID == loan.CopyID && existing.Status == circulation.LoanActive {
				return persistence.ErrDuplicate
			}
		}
	}
	t.store.loans[loan.ID] = loan
	return nil
}

func (t *memoryTx) GetLoan(ctx context.Context, id string) (persistence.Loan, error) {
	return getLoan(t.store, id)
}

func (t *memoryTx) UpdateLoan(ctx context.Context, loan persistence.Loan) error {
	if _, ok := t.store.loans[loan.ID]; !ok {
		return persistence.ErrNotFound
	}
	t.store.loans[loan.ID] = loan
	return nil
}

func (t *memoryTx) CountActiveLoans(ctx context.Context, memberID string) (int, error) {
	count := 0
	for _, loan := range t.store.loans {
		if loan.MemberID == memberID && loan.Status == circulation.LoanActive {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) CreatePenalty(ctx context.Context, penalty persistence.Penalty) error {
	if _, ok := t.store.penalties[penalty.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range t.store.penalties {
		if existing.LoanID == penalty.LoanID {
			return persistence.ErrDuplicate
		}
	}
	t.store.penalties[penalty.ID] = penalty
	return nil
}

func (t *memoryTx) GetPenalty(ctx context.Context, id string) (persistence.Penalty, error) {
	return getPenalty(t.store, id)
}

func (t *memoryTx) GetPenaltyForLoan(ctx context.Context, loanID string) (persistence.Penalty, error) {
	for _, penalty := range t.store.penalties {
		if penalty.LoanID == loanID {
			return penalty, nil
		}
	}
	return persistence.Penalty{}, persistence.ErrNotFound
}

func (t *memoryTx) UpdatePenalty(ctx context.Context, penalty persistence.Penalty) error {
	if _, ok := t.store.penalties[penalty.ID]; !ok {
		return persistence.ErrNotFound
	}
	t.store.penalties[penalty.ID] = penalty
	return nil
}

func (t *memoryTx) SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error) {
	return sumUnpaidPenalties(t.store, memberID), nil
}

func (t *memoryTx) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if _, ok := t.store.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	t.store.reservations[reservation.ID] = reservation
	return nil
}

func (t *memoryTx) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(t.store, id)
}

func (t *memoryTx) UpdateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if _, ok := t.store.reservations[reservation.ID]; !ok {
		return persistence.ErrNotFound
	}
	t.store.reservations[reservation.ID] = reservation
	return nil
}

func (t *memoryTx) ReadyReservationForCopy(ctx context.Context, copyID string) (persistence.Reservation, error) {
	for _, reservation := range t.store.reservations {
		if reservation.Status == circulation.ReservationReadyForPickup &&
			reservation.CopyID != nil && *reservation.CopyID == copyID {
			return reservation, nil
		}
	}
	return persistence.Reservation{}, persistence.ErrNotFound
}

func (t *memoryTx) WaitingReservations(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	var waiting []persistence.Reservation
	for _, reservation := range t.store.reservations {
		if reservation.BookID == bookID && reservation.Status == circulation.ReservationWaiting {
			waiting = append(waiting, reservation)
		}
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].QueuePosition < waiting[j].QueuePosition })
	return waiting, nil
}

func (t *memoryTx) NextQueuePosition(ctx context.Context, bookID string) (int, error) {
	t.store.queueCounters[bookID]++
	return t.store.queueCounters[bookID], nil
}
