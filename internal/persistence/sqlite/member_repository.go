package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/library-circulation/internal/persistence"
)

const memberColumns = `id, name, email, pin_hash, status, max_active_loans, created_at, updated_at`

// CreateMember inserts a new member row.
func (s *Store) CreateMember(ctx context.Context, member persistence.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.Name,
		member.Email,
		member.PINHash,
		string(member.Status),
		member.MaxActiveLoans,
		formatTime(member.CreatedAt),
		formatTime(member.UpdatedAt),
	)
	return mapError(err)
}

// UpdateMember updates an existing member row.
func (s *Store) UpdateMember(ctx context.Context, member persistence.Member) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET name = ?, email = ?, pin_hash = ?, status = ?, max_active_loans = ?, updated_at = ?
		WHERE id = ?`,
		member.Name,
		member.Email,
		member.PINHash,
		string(member.Status),
		member.MaxActiveLoans,
		formatTime(member.UpdatedAt),
		member.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetMember retrieves a member by ID.
func (s *Store) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	return getMember(ctx, s.db, id)
}

// GetMemberByEmail retrieves a member by email address.
func (s *Store) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE email = ? COLLATE NOCASE`, email)
	return scanMember(row)
}

// ListMembers returns all members ordered by creation time.
func (s *Store) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// DeleteMember removes a member by ID.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

func getMember(ctx context.Context, q dbtx, id string) (persistence.Member, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (persistence.Member, error) {
	var member persistence.Member
	var status, createdAt, updatedAt string

	err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PINHash,
		&status,
		&member.MaxActiveLoans,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Member{}, mapError(err)
	}

	member.Status = persistence.MemberStatus(status)
	if member.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Member{}, err
	}
	if member.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Member{}, err
	}
	return member, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
