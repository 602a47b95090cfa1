package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/timewindow"
)

// Directory resolves a teacher's school affiliation and exemption flag.
// The classification policy behind the exemption flag is external.
type Directory interface {
	Lookup(ctx context.Context, teacherID string) (PrincipalInfo, error)
}

// ActivationLookup is the read side of the activation registry consumed by
// access evaluation. The two methods keep the personal-over-school
// priority explicit and exhaustive at the call site.
type ActivationLookup interface {
	CurrentTeacherActivation(ctx context.Context, teacherID string, now time.Time) (*TeacherActivation, error)
	CurrentSchoolActivation(ctx context.Context, schoolID string, now time.Time) (*SchoolActivation, error)
}

// TimetableSource resolves a school's active timetable slots for a
// calendar day, ordered by start time.
type TimetableSource interface {
	ActiveSlots(ctx context.Context, schoolID string, day time.Weekday) ([]persistence.TimetableSlot, error)
}

// AccessService composes the activation registry, the time window policy
// and the exemption flag into a single allow/deny decision.
type AccessService struct {
	directory   Directory
	activations ActivationLookup
	timetable   TimetableSource
	issuer      *TokenIssuer
	location    *time.Location
	logger      *slog.Logger
}

// NewAccessService wires dependencies for access evaluation.
func NewAccessService(directory Directory, activations ActivationLookup, timetable TimetableSource, issuer *TokenIssuer, loc *time.Location, logger *slog.Logger) *AccessService {
	if loc == nil {
		loc = time.UTC
	}
	return &AccessService{
		directory:   directory,
		activations: activations,
		timetable:   timetable,
		issuer:      issuer,
		location:    loc,
		logger:      defaultLogger(logger),
	}
}

func (s *AccessService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccessService", operation, attrs...)
}

// Evaluate decides whether the teacher may use the online-class feature at
// the given instant. The decision is a pure function of the principal, the
// instant and stored state: identical inputs yield identical decisions.
//
// Priority order, first match wins:
//  1. exemption flag;
//  2. the teacher's own current activation, regardless of school or time
//     of day;
//  3. the affiliated school's current activation, gated by the school's
//     allowed time windows;
//  4. otherwise denied.
func (s *AccessService) Evaluate(ctx context.Context, teacherID string, now time.Time) (decision Decision, err error) {
	if s == nil {
		err = fmt.Errorf("AccessService is nil")
		return
	}
	if s.directory == nil || s.activations == nil {
		err = fmt.Errorf("directory or activation lookup not configured")
		return
	}

	logger := s.loggerWith(ctx, "Evaluate", "teacher_id", teacherID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "evaluation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "evaluation finished", "allowed", decision.Allowed, "reason", string(decision.Reason))
	}()

	principal, err := s.directory.Lookup(ctx, teacherID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	if principal.Exempt {
		return Decision{Allowed: true, Reason: ReasonExempt}, nil
	}

	personal, err := s.activations.CurrentTeacherActivation(ctx, teacherID, now)
	if err != nil {
		return
	}
	if personal != nil {
		kind := ActivationTeacher
		end := personal.EndDate
		return Decision{
			Allowed:        true,
			Reason:         ReasonPersonalActive,
			ActivationKind: &kind,
			EntitlementEnd: &end,
		}, nil
	}

	if principal.SchoolID != nil {
		var school *SchoolActivation
		school, err = s.activations.CurrentSchoolActivation(ctx, *principal.SchoolID, now)
		if err != nil {
			return
		}
		if school != nil {
			return s.evaluateSchoolWindow(ctx, *principal.SchoolID, school, now)
		}
	}

	return Decision{Allowed: false, Reason: ReasonNoEntitlement}, nil
}

// evaluateSchoolWindow delegates to the time window policy for principals
// covered only by a school grant.
func (s *AccessService) evaluateSchoolWindow(ctx context.Context, schoolID string, school *SchoolActivation, now time.Time) (Decision, error) {
	localNow := now.In(s.location)

	today, err := s.slotsForDay(ctx, schoolID, localNow)
	if err != nil {
		return Decision{}, err
	}

	lookahead := func(day time.Time) ([]timewindow.Slot, error) {
		return s.slotsForDay(ctx, schoolID, day)
	}

	classification, err := timewindow.Classify(today, localNow, lookahead)
	if err != nil {
		return Decision{}, err
	}

	kind := ActivationSchool
	end := school.EndDate
	decision := Decision{
		Allowed:        classification.InWindow,
		Reason:         DecisionReason(classification.Reason),
		ActivationKind: &kind,
		TimeWindow:     &classification,
		EntitlementEnd: &end,
	}
	if !classification.InWindow {
		decision.NextAvailableAt = classification.NextAvailableAt
		decision.EntitlementEnd = nil
	}
	return decision, nil
}

// slotsForDay materializes stored timetable rows into concrete windows on
// the given day.
func (s *AccessService) slotsForDay(ctx context.Context, schoolID string, day time.Time) ([]timewindow.Slot, error) {
	if s.timetable == nil {
		return nil, nil
	}

	rows, err := s.timetable.ActiveSlots(ctx, schoolID, day.Weekday())
	if err != nil {
		return nil, err
	}

	slots := make([]timewindow.Slot, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), row.StartHour, row.StartMinute, 0, 0, day.Location())
		end := time.Date(day.Year(), day.Month(), day.Day(), row.EndHour, row.EndMinute, 0, 0, day.Location())
		if !end.After(start) {
			continue
		}
		slots = append(slots, timewindow.Slot{Start: start, End: end})
	}
	return slots, nil
}

// IssueJoinToken evaluates access and, when granted, signs a join
// credential whose lifetime never outlives the entitlement.
func (s *AccessService) IssueJoinToken(ctx context.Context, teacherID, roomID string, now time.Time) (JoinToken, Decision, error) {
	decision, err := s.Evaluate(ctx, teacherID, now)
	if err != nil {
		return JoinToken{}, Decision{}, err
	}
	if !decision.Allowed {
		return JoinToken{}, decision, nil
	}
	if s.issuer == nil {
		return JoinToken{}, Decision{}, fmt.Errorf("token issuer not configured")
	}

	token, err := s.issuer.Issue(teacherID, roomID, decision.EntitlementEnd)
	if err != nil {
		return JoinToken{}, decision, err
	}
	return token, decision, nil
}
