package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/timewindow"
)

type directoryStub struct {
	principals map[string]PrincipalInfo
	err        error
}

func (s *directoryStub) Lookup(ctx context.Context, teacherID string) (PrincipalInfo, error) {
	if s.err != nil {
		return PrincipalInfo{}, s.err
	}
	principal, ok := s.principals[teacherID]
	if !ok {
		return PrincipalInfo{}, persistence.ErrNotFound
	}
	return principal, nil
}

type activationLookupStub struct {
	teacher map[string]*TeacherActivation
	school  map[string]*SchoolActivation
	err     error
}

func (s *activationLookupStub) CurrentTeacherActivation(ctx context.Context, teacherID string, now time.Time) (*TeacherActivation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.teacher[teacherID], nil
}

func (s *activationLookupStub) CurrentSchoolActivation(ctx context.Context, schoolID string, now time.Time) (*SchoolActivation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.school[schoolID], nil
}

type timetableStub struct {
	slots map[time.Weekday][]persistence.TimetableSlot
	err   error
}

func (s *timetableStub) ActiveSlots(ctx context.Context, schoolID string, day time.Weekday) ([]persistence.TimetableSlot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.slots[day], nil
}

const (
	accessTeacherID = "teacher-1"
	accessSchoolID  = "school-1"
)

type accessHarness struct {
	svc         *AccessService
	directory   *directoryStub
	activations *activationLookupStub
	timetable   *timetableStub
}

func newAccessHarness(t *testing.T) *accessHarness {
	t.Helper()

	schoolID := accessSchoolID
	directory := &directoryStub{principals: map[string]PrincipalInfo{
		accessTeacherID: {TeacherID: accessTeacherID, SchoolID: &schoolID},
	}}
	activations := &activationLookupStub{
		teacher: make(map[string]*TeacherActivation),
		school:  make(map[string]*SchoolActivation),
	}
	timetable := &timetableStub{slots: make(map[time.Weekday][]persistence.TimetableSlot)}

	issuer := NewTokenIssuer([]byte("access-test-secret"), 60, func() time.Time { return accessNow(20, 0) })
	svc := NewAccessService(directory, activations, timetable, issuer, time.UTC, nil)
	return &accessHarness{svc: svc, directory: directory, activations: activations, timetable: timetable}
}

func grantWindow(start, end time.Time) ActivationWindow {
	return ActivationWindow{
		ID:           "grant-1",
		DurationType: DurationMonthly,
		StartDate:    start,
		EndDate:      end,
		Status:       ActivationActive,
	}
}

// Monday Jan 6 2025; the school teaches 08:00 to 10:00 that day.
func accessNow(hour, minute int) time.Time {
	return time.Date(2025, 1, 6, hour, minute, 0, 0, time.UTC)
}

func mondayMorningSlot() persistence.TimetableSlot {
	return persistence.TimetableSlot{
		ID:          "slot-1",
		SchoolID:    accessSchoolID,
		DayOfWeek:   time.Monday,
		StartHour:   8,
		EndHour:     10,
		IsActive:    true,
	}
}

func TestAccessService_Evaluate_ExemptBypassesEverything(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	h.directory.principals[accessTeacherID] = PrincipalInfo{TeacherID: accessTeacherID, Exempt: true}

	decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(3, 0))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed || decision.Reason != ReasonExempt {
		t.Fatalf("expected exempt allow, got %+v", decision)
	}
	if decision.EntitlementEnd != nil {
		t.Error("exempt decisions must not carry an entitlement end")
	}
}

func TestAccessService_Evaluate_PersonalGrantIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	now := accessNow(23, 30)
	end := now.AddDate(0, 1, 0)
	h.activations.teacher[accessTeacherID] = &TeacherActivation{ActivationWindow: grantWindow(now.AddDate(0, 0, -1), end)}

	decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed || decision.Reason != ReasonPersonalActive {
		t.Fatalf("expected personal allow, got %+v", decision)
	}
	if decision.ActivationKind == nil || *decision.ActivationKind != ActivationTeacher {
		t.Errorf("expected teacher activation kind, got %v", decision.ActivationKind)
	}
	if decision.EntitlementEnd == nil || !decision.EntitlementEnd.Equal(end) {
		t.Errorf("expected entitlement end %v, got %v", end, decision.EntitlementEnd)
	}
}

func TestAccessService_Evaluate_PersonalBeatsSchool(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	// Outside any school window; only the personal grant can allow this.
	now := accessNow(2, 0)
	personalEnd := now.AddDate(0, 0, 7)
	h.activations.teacher[accessTeacherID] = &TeacherActivation{ActivationWindow: grantWindow(now.AddDate(0, 0, -1), personalEnd)}
	h.activations.school[accessSchoolID] = &SchoolActivation{ActivationWindow: grantWindow(now.AddDate(0, -1, 0), now.AddDate(0, 11, 0))}
	h.timetable.slots[time.Monday] = []persistence.TimetableSlot{mondayMorningSlot()}

	decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed || decision.Reason != ReasonPersonalActive {
		t.Fatalf("expected personal grant to win, got %+v", decision)
	}
	if decision.TimeWindow != nil {
		t.Error("personal grants must not consult the time window policy")
	}
}

func TestAccessService_Evaluate_SchoolGrantFollowsWindows(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	schoolEnd := accessNow(0, 0).AddDate(0, 6, 0)
	h.activations.school[accessSchoolID] = &SchoolActivation{ActivationWindow: grantWindow(accessNow(0, 0).AddDate(0, -1, 0), schoolEnd)}
	h.timetable.slots[time.Monday] = []persistence.TimetableSlot{mondayMorningSlot()}

	t.Run("allowed in the before-school margin", func(t *testing.T) {
		decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(6, 30))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !decision.Allowed || decision.Reason != DecisionReason(timewindow.ReasonBeforeSchool) {
			t.Fatalf("expected before-school allow, got %+v", decision)
		}
		if decision.ActivationKind == nil || *decision.ActivationKind != ActivationSchool {
			t.Errorf("expected school activation kind, got %v", decision.ActivationKind)
		}
		if decision.EntitlementEnd == nil || !decision.EntitlementEnd.Equal(schoolEnd) {
			t.Errorf("expected entitlement end %v, got %v", schoolEnd, decision.EntitlementEnd)
		}
	})

	t.Run("denied during school hours", func(t *testing.T) {
		decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(9, 0))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("expected denial during class, got %+v", decision)
		}
		if decision.Reason != DecisionReason(timewindow.ReasonDuringSchool) {
			t.Errorf("unexpected reason %s", decision.Reason)
		}
		if decision.NextAvailableAt == nil || !decision.NextAvailableAt.Equal(accessNow(10, 0)) {
			t.Errorf("expected next available 10:00, got %v", decision.NextAvailableAt)
		}
		if decision.EntitlementEnd != nil {
			t.Error("denied decisions must not carry an entitlement end")
		}
	})

	t.Run("allowed in the after-school margin", func(t *testing.T) {
		decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(11, 30))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !decision.Allowed || decision.Reason != DecisionReason(timewindow.ReasonAfterSchool) {
			t.Fatalf("expected after-school allow, got %+v", decision)
		}
	})

	t.Run("denied outside any window with next-day pointer", func(t *testing.T) {
		decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(23, 0))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("expected denial late at night, got %+v", decision)
		}
		if decision.Reason != DecisionReason(timewindow.ReasonOutsideWindows) {
			t.Errorf("unexpected reason %s", decision.Reason)
		}
		// Tuesday has no slots, so the next opportunity is Tuesday midnight.
		want := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
		if decision.NextAvailableAt == nil || !decision.NextAvailableAt.Equal(want) {
			t.Errorf("expected next available %v, got %v", want, decision.NextAvailableAt)
		}
	})
}

func TestAccessService_Evaluate_SchoolGrantWithoutTimetable(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	h.activations.school[accessSchoolID] = &SchoolActivation{ActivationWindow: grantWindow(accessNow(0, 0).AddDate(0, -1, 0), accessNow(0, 0).AddDate(0, 6, 0))}

	decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(9, 0))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed || decision.Reason != DecisionReason(timewindow.ReasonNoClasses) {
		t.Fatalf("expected allow on a day without classes, got %+v", decision)
	}
}

func TestAccessService_Evaluate_NoEntitlement(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)

	decision, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(9, 0))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonNoEntitlement {
		t.Fatalf("expected no-entitlement denial, got %+v", decision)
	}
}

func TestAccessService_Evaluate_UnknownTeacher(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	if _, err := h.svc.Evaluate(context.Background(), "ghost", accessNow(9, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccessService_Evaluate_LookupFailurePropagates(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	h.activations.err = errors.New("registry unavailable")

	if _, err := h.svc.Evaluate(context.Background(), accessTeacherID, accessNow(9, 0)); err == nil {
		t.Fatal("expected registry failure to propagate")
	}
}

func TestAccessService_IssueJoinToken(t *testing.T) {
	t.Parallel()

	h := newAccessHarness(t)
	now := accessNow(20, 0)
	end := now.Add(30 * time.Minute)
	h.activations.teacher[accessTeacherID] = &TeacherActivation{ActivationWindow: grantWindow(now.AddDate(0, 0, -1), end)}

	t.Run("granted access yields a bounded token", func(t *testing.T) {
		token, decision, err := h.svc.IssueJoinToken(context.Background(), accessTeacherID, "room-1", now)
		if err != nil {
			t.Fatalf("IssueJoinToken failed: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("expected allowed decision, got %+v", decision)
		}
		if token.Token == "" {
			t.Fatal("expected a signed token")
		}
		if token.ExpiresAt.After(end) {
			t.Errorf("token lifetime %v outlives entitlement %v", token.ExpiresAt, end)
		}
	})

	t.Run("denied access yields the decision and no token", func(t *testing.T) {
		token, decision, err := h.svc.IssueJoinToken(context.Background(), "ghost-free", "room-1", now)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown teacher, got %v", err)
		}
		_ = token
		_ = decision
	})

	t.Run("no entitlement yields decision without token", func(t *testing.T) {
		other := "teacher-2"
		schoolless := PrincipalInfo{TeacherID: other}
		h.directory.principals[other] = schoolless

		token, decision, err := h.svc.IssueJoinToken(context.Background(), other, "room-1", now)
		if err != nil {
			t.Fatalf("IssueJoinToken failed: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("expected denial, got %+v", decision)
		}
		if token.Token != "" {
			t.Error("denied access must not issue a token")
		}
	})
}
