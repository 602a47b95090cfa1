package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
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

// ScheduleServiceDeps captures dependencies for constructing a schedule
// service.
type ScheduleServiceDeps struct {
	Rules        application.RuleRepository
	Sessions     application.SessionRepository
	Engine       *recurrence.Engine
	Notifier     application.Notifier
	IDGenerator  func() string
	RoomTokenGen func() string
	Now          func() time.Time
	Location     *time.Location
	Logger       *slog.Logger
}

// NewScheduleService builds a schedule service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewScheduleService(deps ScheduleServiceDeps) *application.ScheduleService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	engine := deps.Engine
	if engine == nil {
		engine = recurrence.NewEngine(loc)
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	roomGen := deps.RoomTokenGen
	if roomGen == nil {
		roomGen = NewIDGenerator("room").NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewScheduleService(
		deps.Rules,
		deps.Sessions,
		engine,
		deps.Notifier,
		idGen,
		roomGen,
		now,
		loc,
		deps.Logger,
	)
}

// ActivationServiceDeps captures dependencies for constructing an activation
// service.
type ActivationServiceDeps struct {
	Activations application.ActivationRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewActivationService builds an activation service using the supplied
// dependencies.
func (f *ServiceFactory) NewActivationService(deps ActivationServiceDeps) *application.ActivationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewActivationService(
		deps.Activations,
		idGen,
		now,
		deps.Logger,
	)
}

// AccessServiceDeps captures dependencies for constructing an access service.
type AccessServiceDeps struct {
	Directory   application.Directory
	Activations application.ActivationLookup
	Timetable   application.TimetableSource
	Issuer      *application.TokenIssuer
	Location    *time.Location
	Logger      *slog.Logger
}

// NewAccessService builds an access service using the supplied dependencies.
// When no token issuer is provided, one is built around the factory clock so
// expiry math in tests stays deterministic.
func (f *ServiceFactory) NewAccessService(deps AccessServiceDeps) *application.AccessService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	issuer := deps.Issuer
	if issuer == nil {
		issuer = application.NewTokenIssuer([]byte("fixture-secret"), 60, f.Clock.NowFunc())
	}
	return application.NewAccessService(
		deps.Directory,
		deps.Activations,
		deps.Timetable,
		issuer,
		loc,
		deps.Logger,
	)
}
