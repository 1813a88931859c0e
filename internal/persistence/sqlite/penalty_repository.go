package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

const penaltyColumns = `id, member_id, loan_id, amount_cents, days_overdue, status, paid_at, created_at`

// GetPenalty retrieves a penalty by ID.
func (s *Store) GetPenalty(ctx context.Context, id string) (persistence.Penalty, error) {
	return getPenalty(ctx, s.db, id)
}

// ListPenaltiesForMember returns a member's penalties, most recent first.
func (s *Store) ListPenaltiesForMember(ctx context.Context, memberID string) ([]persistence.Penalty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+penaltyColumns+` FROM penalties WHERE member_id = ? ORDER BY created_at DESC, id ASC`, memberID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var penalties []persistence.Penalty
	for rows.Next() {
		penalty, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		penalties = append(penalties, penalty)
	}
	return penalties, rows.Err()
}

// SumUnpaidPenalties returns the total of a member's UNPAID penalties. PAID
// and WAIVED penalties never count toward the blocking threshold.
func (s *Store) SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error) {
	return sumUnpaidPenalties(ctx, s.db, memberID)
}

func getPenalty(ctx context.Context, q dbtx, id string) (persistence.Penalty, error) {
	row := q.QueryRowContext(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE id = ?`, id)
	return scanPenalty(row)
}

func getPenaltyForLoan(ctx context.Context, q dbtx, loanID string) (persistence.Penalty, error) {
	row := q.QueryRowContext(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE loan_id = ?`, loanID)
	return scanPenalty(row)
}

func insertPenalty(ctx context.Context, q dbtx, penalty persistence.Penalty) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO penalties (`+penaltyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		penalty.ID,
		penalty.MemberID,
		penalty.LoanID,
		int64(penalty.Amount),
		penalty.DaysOverdue,
		string(penalty.Status),
		formatNullTime(penalty.PaidAt),
		formatTime(penalty.CreatedAt),
	)
	return mapError(err)
}

func updatePenalty(ctx context.Context, q dbtx, penalty persistence.Penalty) error {
	result, err := q.ExecContext(ctx,
		`UPDATE penalties SET status = ?, paid_at = ? WHERE id = ?`,
		string(penalty.Status),
		formatNullTime(penalty.PaidAt),
		penalty.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

func sumUnpaidPenalties(ctx context.Context, q dbtx, memberID string) (circulation.Cents, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM penalties WHERE member_id = ? AND status = ?`,
		memberID, string(circulation.PenaltyUnpaid)).Scan(&total)
	if err != nil {
		return 0, mapError(err)
	}
	return circulation.Cents(total), nil
}

func scanPenalty(row rowScanner) (persistence.Penalty, error) {
	var penalty persistence.Penalty
	var amount int64
	var status, createdAt string
	var paidAt sql.NullString

	err := row.Scan(
		&penalty.ID,
		&penalty.MemberID,
		&penalty.LoanID,
		&amount,
		&penalty.DaysOverdue,
		&status,
		&paidAt,
		&createdAt,
	)
	if err != nil {
		return persistence.Penalty{}, mapError(err)
	}

	penalty.Amount = circulation.Cents(amount)
	penalty.Status = circulation.PenaltyStatus(status)
	if penalty.PaidAt, err = parseNullTime(paidAt); err != nil {
		return persistence.Penalty{}, err
	}
	if penalty.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Penalty{}, err
	}
	return penalty, nil
}
