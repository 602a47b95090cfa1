package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

type capturingActivationRepo struct {
	created persistence.ActivationRecord
}

func (c *capturingActivationRepo) CreateActivation(ctx context.Context, record persistence.ActivationRecord) error {
	c.created = record
	return nil
}

func (c *capturingActivationRepo) GetActivation(ctx context.Context, id string) (persistence.ActivationRecord, error) {
	return persistence.ActivationRecord{}, persistence.ErrNotFound
}

func (c *capturingActivationRepo) ListCurrent(ctx context.Context, kind, activatorID string, now time.Time) ([]persistence.ActivationRecord, error) {
	return nil, nil
}

func (c *capturingActivationRepo) CancelActivation(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (c *capturingActivationRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func TestServiceFactoryNewActivationService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingActivationRepo{}

	svc := factory.NewActivationService(ActivationServiceDeps{Activations: repo})
	params := NewActivationFixture().Params()

	window, kind, err := svc.Activate(context.Background(), params)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}

	if window.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", window.ID)
	}
	if kind != params.Kind {
		t.Fatalf("unexpected kind %q", kind)
	}
	if repo.created.ID != window.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if !window.StartDate.Equal(factory.Clock.Current()) {
		t.Fatalf("expected start %v, got %v", factory.Clock.Current(), window.StartDate)
	}
	if !window.EndDate.Equal(factory.Clock.Current().AddDate(0, 1, 0)) {
		t.Fatalf("expected monthly end date, got %v", window.EndDate)
	}
}

func TestServiceFactoryClockOverride(t *testing.T) {
	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	factory := NewServiceFactory(WithClock(clock), WithIDGenerator(NewIDGenerator("grant")))
	repo := &capturingActivationRepo{}

	svc := factory.NewActivationService(ActivationServiceDeps{Activations: repo})

	window, _, err := svc.Activate(context.Background(), NewActivationFixture().Params())
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}

	if window.ID != "grant-1" {
		t.Fatalf("expected grant-1, got %q", window.ID)
	}
	if !window.StartDate.Equal(start) {
		t.Fatalf("expected start %v, got %v", start, window.StartDate)
	}
}
