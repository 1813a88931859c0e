package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/library-circulation/internal/persistence"
)

// VisitService tracks members' physical presence. An open visit is the
// check-in gate the borrow workflow requires.
type VisitService struct {
	visits      persistence.VisitRepository
	members     persistence.MemberRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewVisitService constructs a visit service with the provided dependencies.
func NewVisitService(visits persistence.VisitRepository, members persistence.MemberRepository, idGenerator func() string, now func() time.Time) *VisitService {
	return NewVisitServiceWithLogger(visits, members, idGenerator, now, nil)
}

// NewVisitServiceWithLogger constructs a visit service with a specified logger.
func NewVisitServiceWithLogger(visits persistence.VisitRepository, members persistence.MemberRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *VisitService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &VisitService{visits: visits, members: members, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *VisitService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "VisitService", operation, attrs...)
}

// CheckIn opens a visit for a member. A member can hold only one open visit
// at a time.
func (s *VisitService) CheckIn(ctx context.Context, memberID string) (visit persistence.Visit, err error) {
	if s == nil {
		err = fmt.Errorf("VisitService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckIn",
		"member_id", memberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check in", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("visit_id", visit.ID).InfoContext(ctx, "member checked in")
	}()

	member, getErr := s.members.GetMember(ctx, memberID)
	if getErr != nil {
		err = mapStoreError(getErr)
		return
	}
	if member.Status != persistence.MemberActive {
		err = ruleViolation(RuleMemberNotActive, "member is %s", member.Status)
		return
	}

	visit = persistence.Visit{
		ID:          s.idGenerator(),
		MemberID:    member.ID,
		CheckedInAt: s.now(),
	}
	if createErr := s.visits.CreateVisit(ctx, visit); createErr != nil {
		visit = persistence.Visit{}
		if errors.Is(createErr, persistence.ErrDuplicate) {
			err = ruleViolation(RuleAlreadyCheckedIn, "member is already checked in")
			return
		}
		err = mapStoreError(createErr)
		return
	}
	return
}

// CheckOut closes the member's open visit.
func (s *VisitService) CheckOut(ctx context.Context, memberID string) (visit persistence.Visit, err error) {
	if s == nil {
		err = fmt.Errorf("VisitService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckOut",
		"member_id", memberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check out", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("visit_id", visit.ID).InfoContext(ctx, "member checked out")
	}()

	open, getErr := s.visits.GetOpenVisit(ctx, memberID)
	if getErr != nil {
		if errors.Is(getErr, persistence.ErrNotFound) {
			err = ruleViolation(RuleNotCheckedIn, "member is not checked in")
			return
		}
		err = mapStoreError(getErr)
		return
	}

	visit, err = s.visits.CloseVisit(ctx, open.ID, s.now())
	if err != nil {
		err = mapStoreError(err)
		visit = persistence.Visit{}
		return
	}
	return
}

// History returns a member's visits, most recent first.
func (s *VisitService) History(ctx context.Context, memberID string) ([]persistence.Visit, error) {
	if s == nil {
		return nil, fmt.Errorf("VisitService is nil")
	}
	visits, err := s.visits.ListVisitsForMember(ctx, memberID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return visits, nil
}
