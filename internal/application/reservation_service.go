package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// ReservationService manages a book's pickup queue: members join it, leave
// it, and external schedulers query it for holds past their pickup window.
// Promotion and fulfillment happen inside the circulation workflows.
type ReservationService struct {
	store        persistence.CirculationStore
	reservations persistence.ReservationRepository
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(store persistence.CirculationStore, reservations persistence.ReservationRepository, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(store, reservations, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(store persistence.CirculationStore, reservations persistence.ReservationRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{store: store, reservations: reservations, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Reserve places a member at the end of a book's queue. The position comes
// from the per-book counter, so two members reserving concurrently can never
// share one.
func (s *ReservationService) Reserve(ctx context.Context, params ReserveParams) (reservation persistence.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Reserve",
		"member_id", params.MemberID,
		"book_id", params.BookID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID, "queue_position", reservation.QueuePosition).InfoContext(ctx, "reservation created")
	}()

	now := s.now()

	err = s.store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		member, txErr := tx.GetMember(ctx, params.MemberID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		book, txErr := tx.GetBook(ctx, params.BookID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		if member.Status != persistence.MemberActive {
			return ruleViolation(RuleMemberNotActive, "member is %s", member.Status)
		}

		waiting, txErr := tx.WaitingReservations(ctx, book.ID)
		if txErr != nil {
			return mapStoreError(txErr)
		}
		for _, existing := range waiting {
			if existing.MemberID == member.ID {
				return ruleViolation(RuleDuplicateReservation, "member is already waiting for this book")
			}
		}

		position, txErr := tx.NextQueuePosition(ctx, book.ID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		reservation = persistence.Reservation{
			ID:            s.idGenerator(),
			MemberID:      member.ID,
			BookID:        book.ID,
			Status:        circulation.ReservationWaiting,
			QueuePosition: position,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if txErr = tx.CreateReservation(ctx, reservation); txErr != nil {
			return mapStoreError(txErr)
		}
		return nil
	})
	if err != nil {
		reservation = persistence.Reservation{}
		return
	}
	return
}

// Cancel withdraws a reservation. A held copy is released back to AVAILABLE.
// The queue is renumbered only when the reservation was still WAITING: a
// ready reservation's position no longer competes for order, so cancelling
// it vacates no slot and the live queue keeps its numbering.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "Cancel",
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	now := s.now()

	return s.store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		reservation, txErr := tx.GetReservation(ctx, reservationID)
		if txErr != nil {
			return mapStoreError(txErr)
		}

		cancelled, trErr := reservation.Status.Cancel()
		if trErr != nil {
			return ruleViolation(RuleReservationNotCancellable, "reservation is %s", reservation.Status)
		}

		wasWaiting := reservation.Status == circulation.ReservationWaiting
		vacated := reservation.QueuePosition

		if reservation.Status == circulation.ReservationReadyForPickup && reservation.CopyID != nil {
			copyRow, copyErr := tx.GetCopy(ctx, *reservation.CopyID)
			if copyErr != nil {
				return mapStoreError(copyErr)
			}
			released, relErr := copyRow.Status.Release()
			if relErr != nil {
				return relErr
			}
			if copyErr = tx.UpdateCopyStatus(ctx, copyRow.ID, released); copyErr != nil {
				return mapStoreError(copyErr)
			}
		}

		reservation.Status = cancelled
		reservation.CopyID = nil
		reservation.NotifiedAt = nil
		reservation.ExpiresAt = nil
		reservation.UpdatedAt = now
		if txErr = tx.UpdateReservation(ctx, reservation); txErr != nil {
			return mapStoreError(txErr)
		}

		if !wasWaiting {
			return nil
		}
		return s.renumberQueue(ctx, tx, reservation.BookID, vacated, now)
	})
}

// renumberQueue closes the gap a cancelled WAITING reservation left behind:
// every waiting reservation above the vacated position moves down one.
func (s *ReservationService) renumberQueue(ctx context.Context, tx persistence.CirculationTx, bookID string, vacated int, now time.Time) error {
	waiting, err := tx.WaitingReservations(ctx, bookID)
	if err != nil {
		return mapStoreError(err)
	}

	entries := make([]circulation.QueueEntry, len(waiting))
	byID := make(map[string]persistence.Reservation, len(waiting))
	for i, reservation := range waiting {
		entries[i] = circulation.QueueEntry{
			ReservationID: reservation.ID,
			MemberID:      reservation.MemberID,
			Position:      reservation.QueuePosition,
		}
		byID[reservation.ID] = reservation
	}

	for _, entry := range circulation.RenumberAfterCancel(entries, vacated) {
		reservation := byID[entry.ReservationID]
		if reservation.QueuePosition == entry.Position {
			continue
		}
		reservation.QueuePosition = entry.Position
		reservation.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, reservation); err != nil {
			return mapStoreError(err)
		}
	}
	return nil
}

// Get returns a reservation by ID.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (persistence.Reservation, error) {
	if s == nil {
		return persistence.Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return persistence.Reservation{}, mapStoreError(err)
	}
	return reservation, nil
}

// ListForBook returns a book's reservations ordered by queue position.
func (s *ReservationService) ListForBook(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	reservations, err := s.reservations.ListReservationsForBook(ctx, bookID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return reservations, nil
}

// ExpiredHolds returns ready-for-pickup reservations whose window closed
// before now. The service never expires them itself; callers drive that.
func (s *ReservationService) ExpiredHolds(ctx context.Context) (expired []persistence.Reservation, err error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "ExpiredHolds")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list expired holds", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(expired)).InfoContext(ctx, "expired holds listed")
	}()

	expired, err = s.reservations.ListExpiredHolds(ctx, s.now())
	if err != nil {
		err = mapStoreError(err)
		return
	}
	return
}
