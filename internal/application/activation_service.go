package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

// ActivationRepository captures the persistence interactions needed by the
// registry.
type ActivationRepository interface {
	CreateActivation(ctx context.Context, record persistence.ActivationRecord) error
	GetActivation(ctx context.Context, id string) (persistence.ActivationRecord, error)
	ListCurrent(ctx context.Context, kind, activatorID string, now time.Time) ([]persistence.ActivationRecord, error)
	CancelActivation(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// ActivationService is the registry of time-bounded access grants.
type ActivationService struct {
	activations ActivationRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewActivationService wires dependencies for the activation registry.
func NewActivationService(activations ActivationRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ActivationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ActivationService{
		activations: activations,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ActivationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ActivationService", operation, attrs...)
}

// durationEnd derives the fixed end date of a grant from its start.
func durationEnd(start time.Time, duration DurationType) (time.Time, bool) {
	switch duration {
	case DurationDaily:
		return start.AddDate(0, 0, 1), true
	case DurationWeekly:
		return start.AddDate(0, 0, 7), true
	case DurationMonthly:
		return start.AddDate(0, 1, 0), true
	case DurationQuarterly:
		return start.AddDate(0, 3, 0), true
	case DurationSemestral:
		return start.AddDate(0, 6, 0), true
	case DurationYearly:
		return start.AddDate(1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Activate records a new grant. The end date is fixed at creation from the
// duration type; prior grants are never merged or extended, so multiple
// records may coexist for the same activator.
func (s *ActivationService) Activate(ctx context.Context, params ActivateParams) (window ActivationWindow, kind ActivationKind, err error) {
	if s == nil {
		err = fmt.Errorf("ActivationService is nil")
		return
	}
	if s.activations == nil {
		err = fmt.Errorf("activation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Activate",
		"kind", string(params.Kind),
		"activator_id", params.ActivatorID,
		"duration_type", string(params.DurationType),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "activation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activation recorded", "activation_id", window.ID, "end_date", window.EndDate)
	}()

	vErr := &ValidationError{}
	if params.Kind != ActivationSchool && params.Kind != ActivationTeacher {
		vErr.add("kind", "kind must be school or teacher")
	}
	if strings.TrimSpace(params.ActivatorID) == "" {
		vErr.add("activator_id", "activator id is required")
	}

	start := s.now()
	end, ok := durationEnd(start, params.DurationType)
	if !ok {
		vErr.add("duration_type", "unknown duration type")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.ActivationRecord{
		ID:           s.idGenerator(),
		Kind:         string(params.Kind),
		ActivatorID:  params.ActivatorID,
		DurationType: string(params.DurationType),
		StartDate:    start,
		EndDate:      end,
		Status:       string(ActivationActive),
		Origin:       params.Origin,
		CreatedAt:    start,
		UpdatedAt:    start,
	}

	if err = s.activations.CreateActivation(ctx, record); err != nil {
		err = mapActivationRepoError(err)
		return
	}

	return toActivationWindow(record), params.Kind, nil
}

// CurrentTeacherActivation resolves the teacher's own current grant, if
// any. When several grants overlap, the most recently started wins.
func (s *ActivationService) CurrentTeacherActivation(ctx context.Context, teacherID string, now time.Time) (*TeacherActivation, error) {
	record, err := s.current(ctx, ActivationTeacher, teacherID, now)
	if err != nil || record == nil {
		return nil, err
	}
	return &TeacherActivation{ActivationWindow: toActivationWindow(*record)}, nil
}

// CurrentSchoolActivation resolves the school's current grant, if any.
func (s *ActivationService) CurrentSchoolActivation(ctx context.Context, schoolID string, now time.Time) (*SchoolActivation, error) {
	record, err := s.current(ctx, ActivationSchool, schoolID, now)
	if err != nil || record == nil {
		return nil, err
	}
	return &SchoolActivation{ActivationWindow: toActivationWindow(*record)}, nil
}

func (s *ActivationService) current(ctx context.Context, kind ActivationKind, activatorID string, now time.Time) (*persistence.ActivationRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("ActivationService is nil")
	}
	if s.activations == nil {
		return nil, fmt.Errorf("activation repository not configured")
	}
	if activatorID == "" {
		return nil, nil
	}

	records, err := s.activations.ListCurrent(ctx, string(kind), activatorID, now)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Overlapping grants: most recent start wins, then latest end, then ID,
	// so the pick is total and deterministic.
	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartDate.Equal(records[j].StartDate) {
			return records[i].StartDate.After(records[j].StartDate)
		}
		if !records[i].EndDate.Equal(records[j].EndDate) {
			return records[i].EndDate.After(records[j].EndDate)
		}
		return records[i].ID > records[j].ID
	})

	record := records[0]
	return &record, nil
}

// Cancel revokes a grant. Cancellation is terminal: the record is excluded
// from lookups regardless of its dates.
func (s *ActivationService) Cancel(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("ActivationService is nil")
	}
	if s.activations == nil {
		return fmt.Errorf("activation repository not configured")
	}

	logger := s.loggerWith(ctx, "Cancel", "activation_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancellation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activation cancelled")
	}()

	if err = s.activations.CancelActivation(ctx, id, s.now()); err != nil {
		err = mapActivationRepoError(err)
	}
	return err
}

// SweepExpired bulk-expires active grants whose end date passed. The sweep
// is idempotent and safe to run concurrently; a second pass over the same
// instant changes nothing.
func (s *ActivationService) SweepExpired(ctx context.Context) (count int64, err error) {
	if s == nil {
		return 0, fmt.Errorf("ActivationService is nil")
	}
	if s.activations == nil {
		return 0, fmt.Errorf("activation repository not configured")
	}

	logger := s.loggerWith(ctx, "SweepExpired")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sweep failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if count > 0 {
			logger.InfoContext(ctx, "expired activations swept", "count", count)
		}
	}()

	return s.activations.MarkExpired(ctx, s.now())
}

func toActivationWindow(record persistence.ActivationRecord) ActivationWindow {
	return ActivationWindow{
		ID:           record.ID,
		ActivatorID:  record.ActivatorID,
		DurationType: DurationType(record.DurationType),
		StartDate:    record.StartDate,
		EndDate:      record.EndDate,
		Status:       ActivationStatus(record.Status),
		Origin:       record.Origin,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func mapActivationRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrConflict
	}
	return err
}
