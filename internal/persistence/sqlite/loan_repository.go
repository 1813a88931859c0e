package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

const loanColumns = `id, member_id, copy_id, borrowed_at, due_date, returned_at, status`

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, id string) (persistence.Loan, error) {
	return getLoan(ctx, s.db, id)
}

// ListLoansForMember returns a member's loans, most recent first.
func (s *Store) ListLoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE member_id = ? ORDER BY borrowed_at DESC, id ASC`, memberID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var loans []persistence.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func getLoan(ctx context.Context, q dbtx, id string) (persistence.Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	return scanLoan(row)
}

func insertLoan(ctx context.Context, q dbtx, loan persistence.Loan) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loan.ID,
		loan.MemberID,
		loan.CopyID,
		formatTime(loan.BorrowedAt),
		formatTime(loan.DueDate),
		formatNullTime(loan.ReturnedAt),
		string(loan.Status),
	)
	return mapError(err)
}

func updateLoan(ctx context.Context, q dbtx, loan persistence.Loan) error {
	result, err := q.ExecContext(ctx,
		`UPDATE loans SET returned_at = ?, status = ? WHERE id = ?`,
		formatNullTime(loan.ReturnedAt),
		string(loan.Status),
		loan.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

func countActiveLoans(ctx context.Context, q dbtx, memberID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE member_id = ? AND status = ?`,
		memberID, string(circulation.LoanActive)).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func scanLoan(row rowScanner) (persistence.Loan, error) {
	var loan persistence.Loan
	var borrowedAt, dueDate, status string
	var returnedAt sql.NullString

	err := row.Scan(&loan.ID, &loan.MemberID, &loan.CopyID, &borrowedAt, &dueDate, &returnedAt, &status)
	if err != nil {
		return persistence.Loan{}, mapError(err)
	}

	loan.Status = circulation.LoanStatus(status)
	if loan.BorrowedAt, err = parseTime(borrowedAt); err != nil {
		return persistence.Loan{}, err
	}
	if loan.DueDate, err = parseTime(dueDate); err != nil {
		return persistence.Loan{}, err
	}
	if loan.ReturnedAt, err = parseNullTime(returnedAt); err != nil {
		return persistence.Loan{}, err
	}
	return loan, nil
}
