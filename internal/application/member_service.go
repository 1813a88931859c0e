package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/example/library-circulation/internal/persistence"
)

// MemberService manages member registration and standing. Circulation only
// reads members; suspension and expiry are decided here.
type MemberService struct {
	members               persistence.MemberRepository
	defaultMaxActiveLoans int
	idGenerator           func() string
	now                   func() time.Time
	logger                *slog.Logger
}

// NewMemberService constructs a member service with the provided dependencies.
func NewMemberService(members persistence.MemberRepository, defaultMaxActiveLoans int, idGenerator func() string, now func() time.Time) *MemberService {
	return NewMemberServiceWithLogger(members, defaultMaxActiveLoans, idGenerator, now, nil)
}

// NewMemberServiceWithLogger constructs a member service with a specified logger.
func NewMemberServiceWithLogger(members persistence.MemberRepository, defaultMaxActiveLoans int, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MemberService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{
		members:               members,
		defaultMaxActiveLoans: defaultMaxActiveLoans,
		idGenerator:           idGenerator,
		now:                   now,
		logger:                defaultLogger(logger),
	}
}

func (s *MemberService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MemberService", operation, attrs...)
}

// Register creates an ACTIVE member with the configured loan allowance. The
// PIN is hashed with argon2id before it reaches storage.
func (s *MemberService) Register(ctx context.Context, params RegisterMemberParams) (member persistence.Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Register")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("member_id", member.ID).InfoContext(ctx, "member registered")
	}()

	vErr := validateRegisterInput(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	pinHash, hashErr := CreatePINHash(params.PIN, DefaultArgon2idParams)
	if hashErr != nil {
		err = fmt.Errorf("failed to hash pin: %w", hashErr)
		return
	}

	member = persistence.Member{
		ID:             s.idGenerator(),
		Name:           strings.TrimSpace(params.Name),
		Email:          strings.ToLower(strings.TrimSpace(params.Email)),
		PINHash:        pinHash,
		Status:         persistence.MemberActive,
		MaxActiveLoans: s.defaultMaxActiveLoans,
		CreatedAt:      s.now(),
	}
	member.UpdatedAt = member.CreatedAt

	if err = mapStoreError(s.members.CreateMember(ctx, member)); err != nil {
		member = persistence.Member{}
		return
	}
	return
}

// Update changes a member's name, standing, and loan allowance.
func (s *MemberService) Update(ctx context.Context, params UpdateMemberParams) (member persistence.Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"member_id", params.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member updated")
	}()

	existing, getErr := s.members.GetMember(ctx, params.MemberID)
	if getErr != nil {
		err = mapStoreError(getErr)
		return
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "name is required")
	}
	if !params.Status.Valid() {
		vErr.add("status", fmt.Sprintf("unknown status %q", string(params.Status)))
	}
	if params.MaxActiveLoans < 1 {
		vErr.add("max_active_loans", "max active loans must be at least 1")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = strings.TrimSpace(params.Name)
	existing.Status = params.Status
	existing.MaxActiveLoans = params.MaxActiveLoans
	existing.UpdatedAt = s.now()

	if err = mapStoreError(s.members.UpdateMember(ctx, existing)); err != nil {
		return
	}
	member = existing
	return
}

// Get returns a member by ID.
func (s *MemberService) Get(ctx context.Context, memberID string) (persistence.Member, error) {
	if s == nil {
		return persistence.Member{}, fmt.Errorf("MemberService is nil")
	}
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return persistence.Member{}, mapStoreError(err)
	}
	return member, nil
}

// List returns all members.
func (s *MemberService) List(ctx context.Context) ([]persistence.Member, error) {
	if s == nil {
		return nil, fmt.Errorf("MemberService is nil")
	}
	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return members, nil
}

// Delete removes a member. Members with circulation history are kept alive
// by foreign keys and cannot be deleted.
func (s *MemberService) Delete(ctx context.Context, memberID string) error {
	if s == nil {
		return fmt.Errorf("MemberService is nil")
	}

	logger := s.loggerWith(ctx, "Delete",
		"member_id", memberID,
	)
	if err := mapStoreError(s.members.DeleteMember(ctx, memberID)); err != nil {
		logger.ErrorContext(ctx, "failed to delete member", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "member deleted")
	return nil
}

func validateRegisterInput(params RegisterMemberParams) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "name is required")
	}
	email := strings.TrimSpace(params.Email)
	if email == "" {
		vErr.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		vErr.add("email", "email is invalid")
	}
	if !validPIN(params.PIN) {
		vErr.add("pin", "pin must be 4 to 8 digits")
	}

	return vErr
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
