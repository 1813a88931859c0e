package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/library-circulation/internal/persistence"
)

const visitColumns = `id, member_id, checked_in_at, checked_out_at`

// CreateVisit records a member check-in. The partial unique index on open
// visits rejects a second check-in while one is still open.
func (s *Store) CreateVisit(ctx context.Context, visit persistence.Visit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES (?, ?, ?, ?)`,
		visit.ID,
		visit.MemberID,
		formatTime(visit.CheckedInAt),
		formatNullTime(visit.CheckedOutAt),
	)
	return mapError(err)
}

// GetOpenVisit returns the member's open visit, if any.
func (s *Store) GetOpenVisit(ctx context.Context, memberID string) (persistence.Visit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE member_id = ? AND checked_out_at IS NULL`, memberID)
	return scanVisit(row)
}

// CloseVisit stamps the check-out time on an open visit.
func (s *Store) CloseVisit(ctx context.Context, visitID string, checkedOutAt time.Time) (persistence.Visit, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE visits SET checked_out_at = ? WHERE id = ? AND checked_out_at IS NULL`,
		formatTime(checkedOutAt), visitID)
	if err != nil {
		return persistence.Visit{}, mapError(err)
	}
	if err := requireRowAffected(result); err != nil {
		return persistence.Visit{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, visitID)
	return scanVisit(row)
}

// ListVisitsForMember returns a member's visits, most recent first.
func (s *Store) ListVisitsForMember(ctx context.Context, memberID string) ([]persistence.Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE member_id = ? ORDER BY checked_in_at DESC, id ASC`, memberID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var visits []persistence.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}

func hasOpenVisit(ctx context.Context, q dbtx, memberID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE member_id = ? AND checked_out_at IS NULL`, memberID).Scan(&count)
	if err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

func scanVisit(row rowScanner) (persistence.Visit, error) {
	var visit persistence.Visit
	var checkedInAt string
	var checkedOutAt sql.NullString

	err := row.Scan(&visit.ID, &visit.MemberID, &checkedInAt, &checkedOutAt)
	if err != nil {
		return persistence.Visit{}, mapError(err)
	}

	if visit.CheckedInAt, err = parseTime(checkedInAt); err != nil {
		return persistence.Visit{}, err
	}
	if visit.CheckedOutAt, err = parseNullTime(checkedOutAt); err != nil {
		return persistence.Visit{}, err
	}
	return visit, nil
}
