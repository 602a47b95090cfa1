package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
)

// DefaultGenerationWeeks is the rolling horizon used when a caller does
// not ask for a specific span.
const DefaultGenerationWeeks = 4

// RuleRepository captures the persistence interactions for rules.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule persistence.RecurrenceRule) error
	GetRule(ctx context.Context, id string) (persistence.RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule persistence.RecurrenceRule) error
	ListActiveRules(ctx context.Context) ([]persistence.RecurrenceRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// SessionRepository captures the persistence interactions for session
// instances.
type SessionRepository interface {
	CreateSession(ctx context.Context, session persistence.SessionInstance) error
	GetSession(ctx context.Context, id string) (persistence.SessionInstance, error)
	UpdateSession(ctx context.Context, session persistence.SessionInstance) error
	ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.SessionInstance, error)
	SessionDatesForRule(ctx context.Context, ruleID string) ([]time.Time, error)
	CountSessionsForRule(ctx context.Context, ruleID string) (int, error)
}

// ScheduleService orchestrates rule definitions, horizon expansion and the
// session instance lifecycle.
type ScheduleService struct {
	rules        RuleRepository
	sessions     SessionRepository
	engine       *recurrence.Engine
	notifier     Notifier
	idGenerator  func() string
	roomTokenGen func() string
	now          func() time.Time
	location     *time.Location
	logger       *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations. The room
// token generator must yield opaque, collision-resistant identifiers.
func NewScheduleService(rules RuleRepository, sessions SessionRepository, engine *recurrence.Engine, notifier Notifier, idGenerator, roomTokenGen func() string, now func() time.Time, loc *time.Location, logger *slog.Logger) *ScheduleService {
	if engine == nil {
		engine = recurrence.NewEngine(loc)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if roomTokenGen == nil {
		roomTokenGen = idGenerator
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{
		rules:        rules,
		sessions:     sessions,
		engine:       engine,
		notifier:     notifier,
		idGenerator:  idGenerator,
		roomTokenGen: roomTokenGen,
		now:          now,
		location:     loc,
		logger:       defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// CreateRule validates and stores a recurrence rule. Malformed rules are
// rejected here, never silently corrected and never re-checked during
// expansion.
func (s *ScheduleService) CreateRule(ctx context.Context, params CreateRuleParams) (rule Rule, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.rules == nil {
		err = fmt.Errorf("rule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRule",
		"scope", string(params.Scope),
		"scope_id", params.ScopeID,
		"rule_type", params.Type.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "rule creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rule created", "rule_id", rule.ID)
	}()

	vErr := &ValidationError{}
	if params.Scope != ScopeSchool && params.Scope != ScopeTeacher && params.Scope != ScopeClass {
		vErr.add("scope", "scope must be school, teacher or class")
	}
	if strings.TrimSpace(params.ScopeID) == "" {
		vErr.add("scope_id", "scope id is required")
	}

	interval := params.Interval
	if interval == 0 && (params.Type == recurrence.TypeCustom || params.Type == recurrence.TypeBiweekly) {
		interval = 1
	}
	if params.Type == recurrence.TypeBiweekly {
		// The interval is fixed for biweekly rules; caller input is ignored.
		interval = 2
	}

	core := recurrence.Rule{
		Type:      params.Type,
		Interval:  interval,
		Weekdays:  params.Weekdays,
		Dates:     params.Dates,
		StartTime: params.StartTime,
		Duration:  time.Duration(params.DurationMinutes) * time.Minute,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
	}
	addRuleValidation(vErr, recurrence.Validate(core))

	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	stored := persistence.RecurrenceRule{
		ID:              s.idGenerator(),
		ScopeKind:       string(params.Scope),
		ScopeID:         params.ScopeID,
		RuleType:        params.Type.String(),
		Interval:        interval,
		Weekdays:        params.Weekdays,
		CustomDates:     datesToTimes(params.Dates),
		StartHour:       params.StartTime.Hour,
		StartMinute:     params.StartTime.Minute,
		DurationMinutes: params.DurationMinutes,
		StartDate:       params.StartDate.At(recurrence.TimeOfDay{}, time.UTC),
		EndDate:         datePtrToTime(params.EndDate),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err = s.rules.CreateRule(ctx, stored); err != nil {
		err = mapScheduleRepoError(err)
		return
	}

	return toRule(stored), nil
}

// GetRule loads a rule by id.
func (s *ScheduleService) GetRule(ctx context.Context, id string) (Rule, error) {
	if s == nil || s.rules == nil {
		return Rule{}, fmt.Errorf("rule repository not configured")
	}
	stored, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return Rule{}, mapScheduleRepoError(err)
	}
	return toRule(stored), nil
}

// Generate expands a rule over the next weeksAhead weeks and persists the
// resulting instances. Re-running is idempotent: days that already have an
// instance are skipped up front, and a storage-level duplicate is treated
// as success, never as an error, so concurrent expansion of the same rule
// is safe. Paused and ended rules generate nothing.
func (s *ScheduleService) Generate(ctx context.Context, ruleID string, weeksAhead int) (created []SessionInstance, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.rules == nil || s.sessions == nil {
		err = fmt.Errorf("repositories not configured")
		return
	}
	if weeksAhead <= 0 {
		weeksAhead = DefaultGenerationWeeks
	}

	logger := s.loggerWith(ctx, "Generate", "rule_id", ruleID, "weeks_ahead", weeksAhead)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "generation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "generation finished", "created", len(created))
	}()

	stored, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		err = mapScheduleRepoError(err)
		return
	}
	if !stored.IsActive || stored.PausedAt != nil {
		return nil, nil
	}

	core, err := toEngineRule(stored)
	if err != nil {
		return nil, err
	}

	existingDates, err := s.sessions.SessionDatesForRule(ctx, ruleID)
	if err != nil {
		err = mapScheduleRepoError(err)
		return
	}
	existing := make(map[recurrence.Date]struct{}, len(existingDates))
	for _, d := range existingDates {
		// Stored session dates are UTC midnights; truncating in UTC keeps
		// them aligned with the calendar days the engine emits.
		existing[recurrence.DateOf(d.UTC())] = struct{}{}
	}

	now := s.now()
	windowEnd := now.AddDate(0, 0, 7*weeksAhead)
	drafts, err := s.engine.Expand(core, recurrence.ExpandOptions{
		WindowStart: now,
		WindowEnd:   windowEnd,
		Now:         now,
		Existing:    existing,
	})
	if err != nil {
		return nil, err
	}

	created = make([]SessionInstance, 0, len(drafts))
	for _, draft := range drafts {
		instance := persistence.SessionInstance{
			ID:             s.idGenerator(),
			RuleID:         &stored.ID,
			SessionDate:    draft.Date.At(recurrence.TimeOfDay{}, time.UTC),
			ScheduledStart: draft.Start,
			ScheduledEnd:   draft.End,
			Status:         string(SessionScheduled),
			RoomID:         s.roomTokenGen(),
			CreatorKind:    string(CreatorSystem),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if createErr := s.sessions.CreateSession(ctx, instance); createErr != nil {
			// Another expansion won the race for this day.
			if errors.Is(createErr, persistence.ErrDuplicate) {
				continue
			}
			err = mapScheduleRepoError(createErr)
			return nil, err
		}
		created = append(created, toSessionInstance(instance))
	}

	stored.OccurrencesGenerated += len(created)
	stored.LastGeneratedAt = &now
	stored.HorizonEnd = &windowEnd
	stored.UpdatedAt = now
	if err = s.rules.UpdateRule(ctx, stored); err != nil {
		err = mapScheduleRepoError(err)
		return nil, err
	}

	for _, instance := range created {
		s.publish(ctx, logger, "session scheduled", instance.ID, s.notifier.SessionScheduled)
	}

	return created, nil
}

// GenerateAll extends the horizon of every active rule. Used by the
// periodic background pass.
func (s *ScheduleService) GenerateAll(ctx context.Context, weeksAhead int) (total int, err error) {
	if s == nil || s.rules == nil {
		return 0, fmt.Errorf("rule repository not configured")
	}

	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return 0, mapScheduleRepoError(err)
	}

	for _, stored := range rules {
		instances, genErr := s.Generate(ctx, stored.ID, weeksAhead)
		if genErr != nil {
			return total, genErr
		}
		total += len(instances)
	}
	return total, nil
}

// PauseRule suspends generation for a rule without losing its state.
func (s *ScheduleService) PauseRule(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, true)
}

// ResumeRule re-enables generation for a paused rule.
func (s *ScheduleService) ResumeRule(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, false)
}

func (s *ScheduleService) setPaused(ctx context.Context, id string, paused bool) error {
	if s == nil || s.rules == nil {
		return fmt.Errorf("rule repository not configured")
	}

	stored, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return mapScheduleRepoError(err)
	}

	now := s.now()
	if paused {
		stored.PausedAt = &now
	} else {
		stored.PausedAt = nil
	}
	stored.UpdatedAt = now

	if err := s.rules.UpdateRule(ctx, stored); err != nil {
		return mapScheduleRepoError(err)
	}
	return nil
}

// EndRule deactivates a rule permanently. Already generated instances are
// left untouched.
func (s *ScheduleService) EndRule(ctx context.Context, id string) error {
	if s == nil || s.rules == nil {
		return fmt.Errorf("rule repository not configured")
	}

	stored, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return mapScheduleRepoError(err)
	}

	stored.IsActive = false
	stored.UpdatedAt = s.now()

	if err := s.rules.UpdateRule(ctx, stored); err != nil {
		return mapScheduleRepoError(err)
	}
	return nil
}

// DeleteRule removes a rule definition. Rules that still have instances
// referencing them cannot be deleted; end or pause them instead.
func (s *ScheduleService) DeleteRule(ctx context.Context, id string) error {
	if s == nil || s.rules == nil || s.sessions == nil {
		return fmt.Errorf("repositories not configured")
	}

	count, err := s.sessions.CountSessionsForRule(ctx, id)
	if err != nil {
		return mapScheduleRepoError(err)
	}
	if count > 0 {
		return ErrConflict
	}

	if err := s.rules.DeleteRule(ctx, id); err != nil {
		return mapScheduleRepoError(err)
	}
	return nil
}

// CreateStandaloneSession stores a one-off session with no recurrence
// reference.
func (s *ScheduleService) CreateStandaloneSession(ctx context.Context, params CreateSessionParams) (instance SessionInstance, err error) {
	if s == nil || s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateStandaloneSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "standalone session created", "session_id", instance.ID)
	}()

	vErr := &ValidationError{}
	if params.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if params.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be positive")
	}
	if params.Creator != CreatorTeacher && params.Creator != CreatorSchool {
		vErr.add("creator", "creator must be teacher or school")
	}
	now := s.now()
	if !params.Start.IsZero() && !params.Start.After(now) {
		vErr.add("start", "start must be in the future")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	start := params.Start.In(s.location)
	stored := persistence.SessionInstance{
		ID:             s.idGenerator(),
		SessionDate:    recurrence.DateOf(start).At(recurrence.TimeOfDay{}, time.UTC),
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Duration(params.DurationMinutes) * time.Minute),
		Status:         string(SessionScheduled),
		RoomID:         s.roomTokenGen(),
		CreatorKind:    string(params.Creator),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err = s.sessions.CreateSession(ctx, stored); err != nil {
		err = mapScheduleRepoError(err)
		return
	}

	instance = toSessionInstance(stored)
	s.publish(ctx, logger, "session scheduled", instance.ID, s.notifier.SessionScheduled)
	return instance, nil
}

// StartSession moves a scheduled session live and announces it.
func (s *ScheduleService) StartSession(ctx context.Context, id string) (SessionInstance, error) {
	instance, err := s.transition(ctx, id, SessionLive)
	if err != nil {
		return SessionInstance{}, err
	}
	logger := s.loggerWith(ctx, "StartSession", "session_id", id)
	s.publish(ctx, logger, "session starting", instance.ID, s.notifier.SessionStarting)
	return instance, nil
}

// EndSession finishes a live session.
func (s *ScheduleService) EndSession(ctx context.Context, id string) (SessionInstance, error) {
	return s.transition(ctx, id, SessionEnded)
}

// CancelSession calls off a scheduled session. Canceled days are never
// regenerated: the instance row stays and keeps its (rule, date) slot.
func (s *ScheduleService) CancelSession(ctx context.Context, id string) (SessionInstance, error) {
	return s.transition(ctx, id, SessionCanceled)
}

func (s *ScheduleService) transition(ctx context.Context, id string, target SessionStatus) (SessionInstance, error) {
	if s == nil || s.sessions == nil {
		return SessionInstance{}, fmt.Errorf("session repository not configured")
	}

	stored, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return SessionInstance{}, mapScheduleRepoError(err)
	}

	if !transitionAllowed(SessionStatus(stored.Status), target) {
		return SessionInstance{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stored.Status, target)
	}

	stored.Status = string(target)
	stored.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, stored); err != nil {
		return SessionInstance{}, mapScheduleRepoError(err)
	}
	return toSessionInstance(stored), nil
}

// transitionAllowed encodes scheduled -> live -> ended and
// scheduled -> canceled.
func transitionAllowed(from, to SessionStatus) bool {
	switch to {
	case SessionLive:
		return from == SessionScheduled
	case SessionEnded:
		return from == SessionLive
	case SessionCanceled:
		return from == SessionScheduled
	default:
		return false
	}
}

// ListSessions enumerates stored instances.
func (s *ScheduleService) ListSessions(ctx context.Context, params ListSessionsParams) ([]SessionInstance, error) {
	if s == nil || s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	filter := persistence.SessionFilter{
		RuleID:      params.RuleID,
		Status:      string(params.Status),
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	}
	stored, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]SessionInstance, 0, len(stored))
	for _, instance := range stored {
		out = append(out, toSessionInstance(instance))
	}
	return out, nil
}

// GetSession loads one instance by id.
func (s *ScheduleService) GetSession(ctx context.Context, id string) (SessionInstance, error) {
	if s == nil || s.sessions == nil {
		return SessionInstance{}, fmt.Errorf("session repository not configured")
	}
	stored, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return SessionInstance{}, mapScheduleRepoError(err)
	}
	return toSessionInstance(stored), nil
}

// publish delivers an outbound event without letting delivery problems
// reach the caller: the triggering mutation already happened.
func (s *ScheduleService) publish(ctx context.Context, logger *slog.Logger, event, sessionID string, fn func(context.Context, string) error) {
	if fn == nil {
		return
	}
	if err := fn(ctx, sessionID); err != nil {
		logger.WarnContext(ctx, "notification dispatch failed", "event", event, "session_id", sessionID, "error", err)
		return
	}
	s.recordDispatch(ctx, logger, event, sessionID)
}

// recordDispatch bumps the instance's notification counter after a
// successful delivery. Pure bookkeeping: a failed update is logged and
// dropped, never surfaced to the caller.
func (s *ScheduleService) recordDispatch(ctx context.Context, logger *slog.Logger, event, sessionID string) {
	stored, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		logger.WarnContext(ctx, "notification bookkeeping failed", "event", event, "session_id", sessionID, "error", err)
		return
	}
	stored.NotificationsSent++
	stored.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, stored); err != nil {
		logger.WarnContext(ctx, "notification bookkeeping failed", "event", event, "session_id", sessionID, "error", err)
	}
}

func addRuleValidation(vErr *ValidationError, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, recurrence.ErrInvalidRuleType):
		vErr.add("rule_type", "rule type must be daily, weekly, biweekly or custom")
	case errors.Is(err, recurrence.ErrInvalidInterval):
		vErr.add("interval", "interval must be at least 1")
	case errors.Is(err, recurrence.ErrMissingWeekdays):
		vErr.add("weekdays", "weekly and biweekly rules require at least one weekday")
	case errors.Is(err, recurrence.ErrMissingDates):
		vErr.add("dates", "custom rules require at least one date")
	case errors.Is(err, recurrence.ErrDateOutOfRange):
		vErr.add("dates", "custom dates must fall within the rule date range")
	case errors.Is(err, recurrence.ErrInvalidDateRange):
		vErr.add("end_date", "end date must not precede start date")
	case errors.Is(err, recurrence.ErrInvalidDuration):
		vErr.add("duration_minutes", "duration must be positive")
	default:
		vErr.add("rule", err.Error())
	}
}

func toEngineRule(stored persistence.RecurrenceRule) (recurrence.Rule, error) {
	ruleType, err := recurrence.ParseRuleType(stored.RuleType)
	if err != nil {
		return recurrence.Rule{}, err
	}

	dates := make([]recurrence.Date, 0, len(stored.CustomDates))
	for _, d := range stored.CustomDates {
		dates = append(dates, recurrence.DateOf(d.UTC()))
	}

	return recurrence.Rule{
		ID:        stored.ID,
		Type:      ruleType,
		Interval:  stored.Interval,
		Weekdays:  stored.Weekdays,
		Dates:     dates,
		StartTime: recurrence.TimeOfDay{Hour: stored.StartHour, Minute: stored.StartMinute},
		Duration:  time.Duration(stored.DurationMinutes) * time.Minute,
		StartDate: recurrence.DateOf(stored.StartDate.UTC()),
		EndDate:   timePtrToDate(stored.EndDate),
	}, nil
}

func toRule(stored persistence.RecurrenceRule) Rule {
	ruleType, _ := recurrence.ParseRuleType(stored.RuleType)

	dates := make([]recurrence.Date, 0, len(stored.CustomDates))
	for _, d := range stored.CustomDates {
		dates = append(dates, recurrence.DateOf(d.UTC()))
	}

	return Rule{
		ID:                   stored.ID,
		Scope:                ScopeKind(stored.ScopeKind),
		ScopeID:              stored.ScopeID,
		Type:                 ruleType,
		Interval:             stored.Interval,
		Weekdays:             stored.Weekdays,
		Dates:                dates,
		StartTime:            recurrence.TimeOfDay{Hour: stored.StartHour, Minute: stored.StartMinute},
		DurationMinutes:      stored.DurationMinutes,
		StartDate:            recurrence.DateOf(stored.StartDate.UTC()),
		EndDate:              timePtrToDate(stored.EndDate),
		IsActive:             stored.IsActive,
		PausedAt:             stored.PausedAt,
		OccurrencesGenerated: stored.OccurrencesGenerated,
		LastGeneratedAt:      stored.LastGeneratedAt,
		HorizonEnd:           stored.HorizonEnd,
		CreatedAt:            stored.CreatedAt,
		UpdatedAt:            stored.UpdatedAt,
	}
}

func toSessionInstance(stored persistence.SessionInstance) SessionInstance {
	return SessionInstance{
		ID:                stored.ID,
		RuleID:            stored.RuleID,
		Date:              recurrence.DateOf(stored.SessionDate.UTC()),
		ScheduledStart:    stored.ScheduledStart,
		ScheduledEnd:      stored.ScheduledEnd,
		Status:            SessionStatus(stored.Status),
		RoomID:            stored.RoomID,
		Creator:           CreatorKind(stored.CreatorKind),
		NotificationsSent: stored.NotificationsSent,
		CreatedAt:         stored.CreatedAt,
		UpdatedAt:         stored.UpdatedAt,
	}
}

func datesToTimes(dates []recurrence.Date) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.At(recurrence.TimeOfDay{}, time.UTC))
	}
	return out
}

func datePtrToTime(d *recurrence.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.At(recurrence.TimeOfDay{}, time.UTC)
	return &t
}

func timePtrToDate(t *time.Time) *recurrence.Date {
	if t == nil {
		return nil
	}
	d := recurrence.DateOf(t.UTC())
	return &d
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrConflict
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "scheduled end must be after scheduled start")
		return vErr
	}
	return err
}
