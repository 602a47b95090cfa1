package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/testfixtures"
	"github.com/example/class-scheduler/internal/timewindow"
)

// storeDirectory exposes the mirrored directory table through the lookup
// interface the access service consumes.
type storeDirectory struct {
	entries persistence.DirectoryRepository
}

func (d storeDirectory) Lookup(ctx context.Context, teacherID string) (application.PrincipalInfo, error) {
	entry, err := d.entries.LookupTeacher(ctx, teacherID)
	if err != nil {
		return application.PrincipalInfo{}, err
	}
	return application.PrincipalInfo{
		TeacherID: entry.TeacherID,
		SchoolID:  entry.SchoolID,
		Exempt:    entry.Exempt,
	}, nil
}

// The store implements every repository interface the services depend on;
// this walks a rule from definition through generation, activation and an
// access decision against a single SQLite file.
func TestStoreBacksApplicationServices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	// Monday 07:00 UTC, an hour before the school's first class.
	clock := testfixtures.NewClock(testfixtures.ReferenceTime().Add(-time.Hour))
	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(clock))

	schedule := factory.NewScheduleService(testfixtures.ScheduleServiceDeps{
		Rules:    harness.Rules,
		Sessions: harness.Sessions,
		Notifier: application.NopNotifier{},
	})
	activations := factory.NewActivationService(testfixtures.ActivationServiceDeps{
		Activations: harness.Activations,
	})
	access := factory.NewAccessService(testfixtures.AccessServiceDeps{
		Directory:   storeDirectory{entries: harness.Directory},
		Activations: activations,
		Timetable:   harness.Timetable,
	})

	rule, err := schedule.CreateRule(ctx, testfixtures.NewRuleFixture().Params())
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	created, err := schedule.Generate(ctx, rule.ID, 2)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(created) != 5 {
		t.Fatalf("expected 5 generated sessions, got %d", len(created))
	}

	count, err := harness.Sessions.CountSessionsForRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("CountSessionsForRule failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 persisted sessions, got %d", count)
	}

	again, err := schedule.Generate(ctx, rule.ID, 2)
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected second generation to be a no-op, created %d", len(again))
	}

	if err := harness.Store.UpsertTimetableSlot(ctx, testfixtures.NewSlotFixture(
		testfixtures.WithSlotSchool("school-001"),
	)); err != nil {
		t.Fatalf("UpsertTimetableSlot failed: %v", err)
	}
	if err := harness.Store.UpsertTeacher(ctx, testfixtures.NewTeacherFixture(
		testfixtures.WithTeacherID("teacher-001"),
		testfixtures.WithTeacherSchool("school-001"),
	).Persistence()); err != nil {
		t.Fatalf("UpsertTeacher failed: %v", err)
	}

	_, kind, err := activations.Activate(ctx, testfixtures.NewActivationFixture(
		testfixtures.WithActivationKind(application.ActivationSchool, "school-001"),
	).Params())
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if kind != application.ActivationSchool {
		t.Fatalf("expected a school grant, got %s", kind)
	}

	now := clock.Now()
	decision, err := access.Evaluate(ctx, "teacher-001", now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected access in the morning margin, got denial %s", decision.Reason)
	}
	if decision.Reason != application.DecisionReason(timewindow.ReasonBeforeSchool) {
		t.Errorf("unexpected reason %s", decision.Reason)
	}
	if decision.TimeWindow == nil || decision.TimeWindow.WindowStart == nil {
		t.Fatalf("expected window bounds on the decision")
	}
	wantStart := time.Date(2025, time.January, 6, 6, 0, 0, 0, time.UTC)
	if !decision.TimeWindow.WindowStart.Equal(wantStart) {
		t.Errorf("expected window start %v, got %v", wantStart, decision.TimeWindow.WindowStart)
	}
	if decision.EntitlementEnd == nil || !decision.EntitlementEnd.After(now) {
		t.Errorf("expected a future entitlement end, got %v", decision.EntitlementEnd)
	}

	token, tokenDecision, err := access.IssueJoinToken(ctx, "teacher-001", created[0].RoomID, now)
	if err != nil {
		t.Fatalf("IssueJoinToken failed: %v", err)
	}
	if !tokenDecision.Allowed {
		t.Fatalf("expected token issue to be allowed, got %s", tokenDecision.Reason)
	}
	if token.Token == "" {
		t.Fatal("expected a signed token")
	}
	if !token.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected the default one hour lifetime, got %v", token.ExpiresAt)
	}
}
