package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

const reservationColumns = `id, member_id, book_id, copy_id, status, queue_position, notified_at, expires_at, created_at, updated_at`

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, s.db, id)
}

// ListReservationsForBook returns all reservations for a book ordered by
// queue position.
func (s *Store) ListReservationsForBook(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE book_id = ? ORDER BY queue_position ASC, id ASC`, bookID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListExpiredHolds returns READY_FOR_PICKUP reservations whose pickup window
// closed before the reference instant. The engine never expires them itself;
// an external scheduler consumes this query.
func (s *Store) ListExpiredHolds(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY expires_at ASC, id ASC`,
		string(circulation.ReservationReadyForPickup), formatTime(reference))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

func getReservation(ctx context.Context, q dbtx, id string) (persistence.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

func insertReservation(ctx context.Context, q dbtx, reservation persistence.Reservation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.MemberID,
		reservation.BookID,
		nullString(reservation.CopyID),
		string(reservation.Status),
		reservation.QueuePosition,
		formatNullTime(reservation.NotifiedAt),
		formatNullTime(reservation.ExpiresAt),
		formatTime(reservation.CreatedAt),
		formatTime(reservation.UpdatedAt),
	)
	return mapError(err)
}

func updateReservation(ctx context.Context, q dbtx, reservation persistence.Reservation) error {
	result, err := q.ExecContext(ctx, `
		UPDATE reservations
		SET copy_id = ?, status = ?, queue_position = ?, notified_at = ?, expires_at = ?, updated_at = ?
		WHERE id = ?`,
		nullString(reservation.CopyID),
		string(reservation.Status),
		reservation.QueuePosition,
		formatNullTime(reservation.NotifiedAt),
		formatNullTime(reservation.ExpiresAt),
		formatTime(reservation.UpdatedAt),
		reservation.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

func readyReservationForCopy(ctx context.Context, q dbtx, copyID string) (persistence.Reservation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE copy_id = ? AND status = ?`,
		copyID, string(circulation.ReservationReadyForPickup))
	return scanReservation(row)
}

func waitingReservations(ctx context.Context, q dbtx, bookID string) ([]persistence.Reservation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE book_id = ? AND status = ?
		ORDER BY queue_position ASC`,
		bookID, string(circulation.ReservationWaiting))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// nextQueuePosition allocates the next position from the per-book counter
// row, creating the counter on first use. The counter only ever grows, so
// positions are never reused even after cancellations renumber the queue.
func nextQueuePosition(ctx context.Context, q dbtx, bookID string) (int, error) {
	var position int
	err := q.QueryRowContext(ctx, `
		INSERT INTO reservation_queues (book_id, next_position) VALUES (?, 1)
		ON CONFLICT (book_id) DO UPDATE SET next_position = next_position + 1
		RETURNING next_position`,
		bookID).Scan(&position)
	if err != nil {
		return 0, mapError(err)
	}
	return position, nil
}

func collectReservations(rows *sql.Rows) ([]persistence.Reservation, error) {
	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var status, createdAt, updatedAt string
	var copyID, notifiedAt, expiresAt sql.NullString

	err := row.Scan(
		&reservation.ID,
		&reservation.MemberID,
		&reservation.BookID,
		&copyID,
		&status,
		&reservation.QueuePosition,
		&notifiedAt,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}

	reservation.Status = circulation.ReservationStatus(status)
	reservation.CopyID = stringPtr(copyID)
	if reservation.NotifiedAt, err = parseNullTime(notifiedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}
