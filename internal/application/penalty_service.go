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

// PenaltyService settles overdue penalties. Penalties are created by the
// return workflow; this service only reads and pays them.
type PenaltyService struct {
	store     persistence.CirculationStore
	penalties persistence.PenaltyRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewPenaltyService constructs a penalty service with the provided dependencies.
func NewPenaltyService(store persistence.CirculationStore, penalties persistence.PenaltyRepository, now func() time.Time) *PenaltyService {
	return NewPenaltyServiceWithLogger(store, penalties, now, nil)
}

// NewPenaltyServiceWithLogger constructs a penalty service with a specified logger.
func NewPenaltyServiceWithLogger(store persistence.CirculationStore, penalties persistence.PenaltyRepository, now func() time.Time, logger *slog.Logger) *PenaltyService {
	if now == nil {
		now = time.Now
	}
	return &PenaltyService{store: store, penalties: penalties, now: now, logger: defaultLogger(logger)}
}

func (s *PenaltyService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PenaltyService", operation, attrs...)
}

// Pay settles an unpaid penalty in full. Paying an already paid or waived
// penalty is rejected with its current state; there is no partial payment
// and no refund path.
func (s *PenaltyService) Pay(ctx context.Context, penaltyID string) (penalty persistence.Penalty, err error) {
	if s == nil {
		err = fmt.Errorf("PenaltyService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Pay",
		"penalty_id", penaltyID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to pay penalty", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("amount", penalty.Amount.String()).InfoContext(ctx, "penalty paid")
	}()

	now := s.now()

	err = s.store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		current, txErr := tx.GetPenalty(ctx, penaltyID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		paid, trErr := current.Status.Pay()
		if trErr != nil {
			switch current.Status {
			case circulation.PenaltyPaid:
				return ruleViolation(RulePenaltyNotPayable, "penalty already paid")
			case circulation.PenaltyWaived:
				return ruleViolation(RulePenaltyNotPayable, "penalty already waived")
			}
			return trErr
		}

		paidAt := now
		current.Status = paid
		current.PaidAt = &paidAt
		if txErr = tx.UpdatePenalty(ctx, current); txErr != nil {
			return mapStoreError(txErr)
		}

		penalty = current
		return nil
	})
	if err != nil {
		penalty = persistence.Penalty{}
		return
	}
	return
}

// UnpaidTotal returns the member's outstanding penalty total. Paid and
// waived penalties never count.
func (s *PenaltyService) UnpaidTotal(ctx context.Context, memberID string) (circulation.Cents, error) {
	if s == nil {
		return 0, fmt.Errorf("PenaltyService is nil")
	}
	total, err := s.penalties.SumUnpaidPenalties(ctx, memberID)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return total, nil
}

// StatementForMember returns a member's penalties together with the unpaid
// total the borrow workflow gates on.
func (s *PenaltyService) StatementForMember(ctx context.Context, memberID string) (statement PenaltyStatement, err error) {
	if s == nil {
		err = fmt.Errorf("PenaltyService is nil")
		return
	}

	logger := s.loggerWith(ctx, "StatementForMember",
		"member_id", memberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build penalty statement", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	penalties, listErr := s.penalties.ListPenaltiesForMember(ctx, memberID)
	if listErr != nil {
		err = mapStoreError(listErr)
		return
	}
	total, sumErr := s.penalties.SumUnpaidPenalties(ctx, memberID)
	if sumErr != nil {
		err = mapStoreError(sumErr)
		return
	}

	statement = PenaltyStatement{Penalties: penalties, UnpaidTotal: total}
	return
}

// Get returns a penalty by ID.
func (s *PenaltyService) Get(ctx context.Context, penaltyID string) (persistence.Penalty, error) {
	if s == nil {
		return persistence.Penalty{}, fmt.Errorf("PenaltyService is nil")
	}
	penalty, err := s.penalties.GetPenalty(ctx, penaltyID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Penalty{}, ErrNotFound
		}
		return persistence.Penalty{}, err
	}
	return penalty, nil
}
