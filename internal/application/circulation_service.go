package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// CirculationService runs the borrow and return workflows. Every entry point
// executes inside one store transaction: validation reads and state writes
// commit or roll back together.
type CirculationService struct {
	store       persistence.CirculationStore
	loans       persistence.LoanRepository
	policy      CirculationPolicy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCirculationService constructs a circulation service with the provided dependencies.
func NewCirculationService(store persistence.CirculationStore, loans persistence.LoanRepository, policy CirculationPolicy, idGenerator func() string, now func() time.Time) *CirculationService {
	return NewCirculationServiceWithLogger(store, loans, policy, idGenerator, now, nil)
}

// NewCirculationServiceWithLogger constructs a circulation service with a specified logger.
func NewCirculationServiceWithLogger(store persistence.CirculationStore, loans persistence.LoanRepository, policy CirculationPolicy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CirculationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CirculationService{store: store, loans: loans, policy: policy, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *CirculationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CirculationService", operation, attrs...)
}

// Borrow lends a copy to a member. The checks run in a fixed order against
// rows read inside the transaction; the first failure wins and nothing is
// written. A copy ON_HOLD is lendable only to the member whose ready
// reservation holds that exact copy, and borrowing it fulfills the
// reservation.
func (s *CirculationService) Borrow(ctx context.Context, params BorrowParams) (summary LoanSummary, err error) {
	if s == nil {
		err = fmt.Errorf("CirculationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Borrow",
		"member_id", params.MemberID,
		"copy_id", params.CopyID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to borrow copy", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("loan_id", summary.Loan.ID).InfoContext(ctx, "copy borrowed")
	}()

	now := s.now()

	err = s.store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		member, txErr := tx.GetMember(ctx, params.MemberID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		copyRow, txErr := tx.GetCopy(ctx, params.CopyID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		if member.Status != persistence.MemberActive {
			return ruleViolation(RuleMemberNotActive, "member is %s", member.Status)
		}

		checkedIn, txErr := tx.HasOpenVisit(ctx, member.ID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		if !checkedIn {
			return ruleViolation(RuleMemberNotCheckedIn, "member must be checked in to borrow")
		}

		unpaid, txErr := tx.SumUnpaidPenalties(ctx, member.ID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		if unpaid >= s.policy.PenaltyBlockingThreshold {
			return ruleViolation(RuleUnpaidPenalties,
				"member has unpaid penalties (%s) at or above blocking threshold (%s)",
				unpaid, s.policy.PenaltyBlockingThreshold)
		}

		var claimed *persistence.Reservation
		switch copyRow.Status {
		case circulation.CopyAvailable:
		case circulation.CopyOnHold:
			reservation, holdErr := tx.ReadyReservationForCopy(ctx, copyRow.ID)
			if holdErr != nil {
				if errors.Is(holdErr, persistence.ErrNotFound) {
					return ruleViolation(RuleCopyNotAvailable, "copy is on hold for another member")
				}
				return mapStoreError(holdErr)
			}
			if reservation.MemberID != member.ID {
				return ruleViolation(RuleCopyNotAvailable, "copy is on hold for another member")
			}
			claimed = &reservation
		default:
			return ruleViolation(RuleCopyNotAvailable, "copy is %s", copyRow.Status)
		}

		if !copyRow.UsageType.Borrowable() {
			return ruleViolation(RuleCopyNotBorrowable, "copy is restricted to the reading room")
		}

		activeLoans, txErr := tx.CountActiveLoans(ctx, member.ID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		if activeLoans >= member.MaxActiveLoans {
			return ruleViolation(RuleMaxLoansExceeded, "member already has %d of %d active loans", activeLoans, member.MaxActiveLoans)
		}

		loan := persistence.Loan{
			ID:         s.idGenerator(),
			MemberID:   member.ID,
			CopyID:     copyRow.ID,
			BorrowedAt: now,
			DueDate:    now.AddDate(0, 0, s.policy.LoanDurationDays),
			Status:     circulation.LoanActive,
		}
		if txErr = tx.CreateLoan(ctx, loan); txErr != nil {
			return mapStoreError(txErr)
		}

		lent, txErr := copyRow.Status.Lend()
		if txErr != nil {
			return txErr
		}
		if txErr = tx.UpdateCopyStatus(ctx, copyRow.ID, lent); txErr != nil {
			return mapStoreError(txErr)
		}

		if claimed != nil {
			fulfilled, trErr := claimed.Status.Fulfill()
			if trErr != nil {
				return trErr
			}
			claimed.Status = fulfilled
			claimed.UpdatedAt = now
			if txErr = tx.UpdateReservation(ctx, *claimed); txErr != nil {
				return mapStoreError(txErr)
			}
		}

		summary = LoanSummary{Loan: loan, FulfilledReservation: claimed}
		return nil
	})
	if err != nil {
		summary = LoanSummary{}
		return
	}
	return
}

// Return closes an active loan. The freed copy goes back to AVAILABLE unless
// a reservation is waiting for the book, in which case the earliest one is
// promoted and the copy held for it. A late return creates at most one
// penalty per loan, so retrying a failed return never double-charges.
func (s *CirculationService) Return(ctx context.Context, loanID string) (summary ReturnSummary, err error) {
	if s == nil {
		err = fmt.Errorf("CirculationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Return",
		"loan_id", loanID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to return loan", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("overdue", summary.Overdue).InfoContext(ctx, "loan returned")
	}()

	now := s.now()

	err = s.store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		loan, txErr := tx.GetLoan(ctx, loanID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		if loan.Status != circulation.LoanActive {
			return ruleViolation(RuleLoanNotActive, "loan is %s", loan.Status)
		}

		closed, txErr := loan.Status.Close()
		if txErr != nil {
			return txErr
		}
		returnedAt := now
		loan.ReturnedAt = &returnedAt
		loan.Status = closed
		if txErr = tx.UpdateLoan(ctx, loan); txErr != nil {
			return mapStoreError(txErr)
		}

		copyRow, txErr := tx.GetCopy(ctx, loan.CopyID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		daysOverdue := circulation.DaysOverdue(loan.DueDate, returnedAt)
		var penalty *persistence.Penalty
		if daysOverdue > 0 {
			penalty, txErr = s.createPenaltyIfMissing(ctx, tx, loan, daysOverdue, now)
			if txErr != nil {
				return txErr
			}
		}

		promoted, txErr := s.promoteNextReservation(ctx, tx, copyRow, now)
		if txErr != nil {
			return txErr
		}

		summary = ReturnSummary{
			Loan:                loan,
			Overdue:             daysOverdue > 0,
			DaysOverdue:         daysOverdue,
			Penalty:             penalty,
			PromotedReservation: promoted,
		}
		return nil
	})
	if err != nil {
		summary = ReturnSummary{}
		return
	}
	return
}

// createPenaltyIfMissing creates the UNPAID penalty for a late loan unless
// one already exists. At most one penalty ever exists per loan.
func (s *CirculationService) createPenaltyIfMissing(ctx context.Context, tx persistence.CirculationTx, loan persistence.Loan, daysOverdue int, now time.Time) (*persistence.Penalty, error) {
	existing, err := tx.GetPenaltyForLoan(ctx, loan.ID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, mapStoreError(err)
	}

	penalty := persistence.Penalty{
		ID:          s.idGenerator(),
		MemberID:    loan.MemberID,
		LoanID:      loan.ID,
		Amount:      circulation.PenaltyAmount(s.policy.DailyPenaltyFee, daysOverdue),
		DaysOverdue: daysOverdue,
		Status:      circulation.PenaltyUnpaid,
		CreatedAt:   now,
	}
	if err := tx.CreatePenalty(ctx, penalty); err != nil {
		return nil, mapStoreError(err)
	}
	return &penalty, nil
}

// promoteNextReservation hands the freed copy to the earliest waiting
// reservation for its book. With no waiter the copy is released to AVAILABLE.
func (s *CirculationService) promoteNextReservation(ctx context.Context, tx persistence.CirculationTx, copyRow persistence.BookCopy, now time.Time) (*persistence.Reservation, error) {
	released, err := copyRow.Status.Release()
	if err != nil {
		return nil, err
	}

	waiting, err := tx.WaitingReservations(ctx, copyRow.BookID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	entries := make([]circulation.QueueEntry, len(waiting))
	for i, reservation := range waiting {
		entries[i] = circulation.QueueEntry{
			ReservationID: reservation.ID,
			MemberID:      reservation.MemberID,
			Position:      reservation.QueuePosition,
		}
	}
	next, ok := circulation.NextInLine(entries)
	if !ok {
		if err := tx.UpdateCopyStatus(ctx, copyRow.ID, released); err != nil {
			return nil, mapStoreError(err)
		}
		return nil, nil
	}

	var promoted persistence.Reservation
	for _, reservation := range waiting {
		if reservation.ID == next.ReservationID {
			promoted = reservation
			break
		}
	}

	ready, err := promoted.Status.MakeReady()
	if err != nil {
		return nil, err
	}
	held, err := released.Hold()
	if err != nil {
		return nil, err
	}

	notifiedAt := now
	expiresAt := now.AddDate(0, 0, s.policy.PickupWindowDays)
	promoted.Status = ready
	promoted.CopyID = &copyRow.ID
	promoted.NotifiedAt = &notifiedAt
	promoted.ExpiresAt = &expiresAt
	promoted.UpdatedAt = now

	if err := tx.UpdateReservation(ctx, promoted); err != nil {
		return nil, mapStoreError(err)
	}
	if err := tx.UpdateCopyStatus(ctx, copyRow.ID, held); err != nil {
		return nil, mapStoreError(err)
	}
	return &promoted, nil
}

// GetLoan returns a loan by ID.
func (s *CirculationService) GetLoan(ctx context.Context, loanID string) (persistence.Loan, error) {
	if s == nil {
		return persistence.Loan{}, fmt.Errorf("CirculationService is nil")
	}
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return persistence.Loan{}, mapStoreError(err)
	}
	return loan, nil
}

// LoansForMember returns a member's loans, most recent first.
func (s *CirculationService) LoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	if s == nil {
		return nil, fmt.Errorf("CirculationService is nil")
	}
	loans, err := s.loans.ListLoansForMember(ctx, memberID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return loans, nil
}

// mapStoreError translates persistence sentinels into application errors.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}
