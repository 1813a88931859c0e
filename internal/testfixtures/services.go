package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      application.CirculationPolicy
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the shared
// reference clock, sequential IDs, and the default circulation policy of a
// two week loan, a 1.00 daily fee, a 10.00 blocking threshold, and a three
// day pickup window.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Policy: application.CirculationPolicy{
			LoanDurationDays:         14,
			DailyPenaltyFee:          100,
			PenaltyBlockingThreshold: 1000,
			PickupWindowDays:         3,
		},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithPolicy overrides the circulation policy used by the factory.
func WithPolicy(policy application.CirculationPolicy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// NewCirculationService builds a circulation service over the supplied store
// using the factory clock, IDs, and policy.
func (f *ServiceFactory) NewCirculationService(store persistence.CirculationStore, loans persistence.LoanRepository, logger *slog.Logger) *application.CirculationService {
	return application.NewCirculationServiceWithLogger(store, loans, f.Policy, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewReservationService builds a reservation service over the supplied store.
func (f *ServiceFactory) NewReservationService(store persistence.CirculationStore, reservations persistence.ReservationRepository, logger *slog.Logger) *application.ReservationService {
	return application.NewReservationServiceWithLogger(store, reservations, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewPenaltyService builds a penalty service over the supplied store.
func (f *ServiceFactory) NewPenaltyService(store persistence.CirculationStore, penalties persistence.PenaltyRepository, logger *slog.Logger) *application.PenaltyService {
	return application.NewPenaltyServiceWithLogger(store, penalties, f.Clock.NowFunc(), logger)
}

// NewMemberService builds a member service over the supplied repository. The
// default loan allowance for new members is five.
func (f *ServiceFactory) NewMemberService(members persistence.MemberRepository, logger *slog.Logger) *application.MemberService {
	return application.NewMemberServiceWithLogger(members, 5, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewCatalogService builds a catalog service over the supplied repository.
func (f *ServiceFactory) NewCatalogService(books persistence.BookRepository, logger *slog.Logger) *application.CatalogService {
	return application.NewCatalogServiceWithLogger(books, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewVisitService builds a visit service over the supplied repositories.
func (f *ServiceFactory) NewVisitService(visits persistence.VisitRepository, members persistence.MemberRepository, logger *slog.Logger) *application.VisitService {
	return application.NewVisitServiceWithLogger(visits, members, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}
