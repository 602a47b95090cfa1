package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
)

var (
	ruleCounter       uint64
	sessionCounter    uint64
	activationCounter uint64
	slotCounter       uint64
	teacherCounter    uint64
)

// referenceTime is a Monday morning, so weekly fixtures anchored to it match
// on their own start date.
var referenceTime = time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar day of ReferenceTime.
func ReferenceDate() recurrence.Date {
	return recurrence.DateOf(referenceTime)
}

// ----------------------------- Rule fixtures -----------------------------

// RuleFixture represents a deterministic recurrence rule that can be
// materialised for application or persistence tests. The default is a weekly
// Monday/Wednesday rule at 18:00 lasting an hour.
type RuleFixture struct {
	ID                   string
	Scope                application.ScopeKind
	ScopeID              string
	Type                 recurrence.RuleType
	Interval             int
	Weekdays             []time.Weekday
	CustomDates          []time.Time
	StartHour            int
	StartMinute          int
	DurationMinutes      int
	StartDate            time.Time
	EndDate              *time.Time
	IsActive             bool
	PausedAt             *time.Time
	OccurrencesGenerated int
	LastGeneratedAt      *time.Time
	HorizonEnd           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RuleOption configures the generated rule fixture.
type RuleOption func(*RuleFixture)

// NewRuleFixture returns a deterministic rule fixture with optional overrides.
func NewRuleFixture(opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RuleFixture{
		ID:              fmt.Sprintf("rule-%03d", idx),
		Scope:           application.ScopeClass,
		ScopeID:         fmt.Sprintf("class-%03d", idx),
		Type:            recurrence.TypeWeekly,
		Interval:        1,
		Weekdays:        []time.Weekday{time.Monday, time.Wednesday},
		StartHour:       18,
		StartMinute:     0,
		DurationMinutes: 60,
		StartDate:       time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		IsActive:        true,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRuleID overrides the generated rule ID.
func WithRuleID(id string) RuleOption {
	return func(f *RuleFixture) {
		f.ID = id
	}
}

// WithRuleScope overrides the scope kind and scope ID.
func WithRuleScope(scope application.ScopeKind, scopeID string) RuleOption {
	return func(f *RuleFixture) {
		f.Scope = scope
		f.ScopeID = scopeID
	}
}

// WithRuleType overrides the recurrence type.
func WithRuleType(ruleType recurrence.RuleType) RuleOption {
	return func(f *RuleFixture) {
		f.Type = ruleType
	}
}

// WithRuleInterval overrides the recurrence interval.
func WithRuleInterval(interval int) RuleOption {
	return func(f *RuleFixture) {
		f.Interval = interval
	}
}

// WithRuleWeekdays overrides the matched weekdays.
func WithRuleWeekdays(days ...time.Weekday) RuleOption {
	return func(f *RuleFixture) {
		f.Weekdays = days
	}
}

// WithRuleCustomDates sets the explicit date list for custom rules.
func WithRuleCustomDates(dates ...time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.CustomDates = dates
	}
}

// WithRuleStartTime overrides the wall-clock start time.
func WithRuleStartTime(hour, minute int) RuleOption {
	return func(f *RuleFixture) {
		f.StartHour = hour
		f.StartMinute = minute
	}
}

// WithRuleDuration overrides the session duration in minutes.
func WithRuleDuration(minutes int) RuleOption {
	return func(f *RuleFixture) {
		f.DurationMinutes = minutes
	}
}

// WithRuleStartDate overrides the first day the rule applies to.
func WithRuleStartDate(t time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.StartDate = t
	}
}

// WithRuleEndDate sets the last day the rule applies to.
func WithRuleEndDate(t time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.EndDate = &t
	}
}

// WithoutRuleEndDate clears the end date, making the rule open ended.
func WithoutRuleEndDate() RuleOption {
	return func(f *RuleFixture) {
		f.EndDate = nil
	}
}

// WithRulePausedAt marks the rule paused at the given instant.
func WithRulePausedAt(t time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.PausedAt = &t
	}
}

// WithRuleInactive marks the rule ended.
func WithRuleInactive() RuleOption {
	return func(f *RuleFixture) {
		f.IsActive = false
	}
}

// WithRuleGeneration sets the generation bookkeeping fields.
func WithRuleGeneration(occurrences int, lastGeneratedAt, horizonEnd time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.OccurrencesGenerated = occurrences
		f.LastGeneratedAt = &lastGeneratedAt
		f.HorizonEnd = &horizonEnd
	}
}

// WithRuleTimestamps sets both created and updated timestamps on the fixture.
func WithRuleTimestamps(created, updated time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence converts the fixture into its stored representation.
func (f RuleFixture) Persistence() persistence.RecurrenceRule {
	return persistence.RecurrenceRule{
		ID:                   f.ID,
		ScopeKind:            string(f.Scope),
		ScopeID:              f.ScopeID,
		RuleType:             f.Type.String(),
		Interval:             f.Interval,
		Weekdays:             append([]time.Weekday(nil), f.Weekdays...),
		CustomDates:          append([]time.Time(nil), f.CustomDates...),
		StartHour:            f.StartHour,
		StartMinute:          f.StartMinute,
		DurationMinutes:      f.DurationMinutes,
		StartDate:            f.StartDate,
		EndDate:              copyTimePtr(f.EndDate),
		IsActive:             f.IsActive,
		PausedAt:             copyTimePtr(f.PausedAt),
		OccurrencesGenerated: f.OccurrencesGenerated,
		LastGeneratedAt:      copyTimePtr(f.LastGeneratedAt),
		HorizonEnd:           copyTimePtr(f.HorizonEnd),
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}
}

// Params converts the fixture into creation parameters for the schedule
// service.
func (f RuleFixture) Params() application.CreateRuleParams {
	dates := make([]recurrence.Date, 0, len(f.CustomDates))
	for _, d := range f.CustomDates {
		dates = append(dates, recurrence.DateOf(d))
	}
	params := application.CreateRuleParams{
		Scope:           f.Scope,
		ScopeID:         f.ScopeID,
		Type:            f.Type,
		Interval:        f.Interval,
		Weekdays:        append([]time.Weekday(nil), f.Weekdays...),
		Dates:           dates,
		StartTime:       recurrence.TimeOfDay{Hour: f.StartHour, Minute: f.StartMinute},
		DurationMinutes: f.DurationMinutes,
		StartDate:       recurrence.DateOf(f.StartDate),
	}
	if f.EndDate != nil {
		end := recurrence.DateOf(*f.EndDate)
		params.EndDate = &end
	}
	return params
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic session instance. The default is
// a scheduled standalone session created by a teacher.
type SessionFixture struct {
	ID                string
	RuleID            *string
	SessionDate       time.Time
	ScheduledStart    time.Time
	ScheduledEnd      time.Time
	Status            application.SessionStatus
	RoomID            string
	Creator           application.CreatorKind
	NotificationsSent int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional
// overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	day := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(idx-1))
	start := day.Add(18 * time.Hour)
	fixture := SessionFixture{
		ID:             fmt.Sprintf("session-%03d", idx),
		SessionDate:    day,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		Status:         application.SessionScheduled,
		RoomID:         fmt.Sprintf("room-%03d", idx),
		Creator:        application.CreatorTeacher,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionRule attaches the session to a recurrence rule and marks it
// system generated.
func WithSessionRule(ruleID string) SessionOption {
	return func(f *SessionFixture) {
		f.RuleID = &ruleID
		f.Creator = application.CreatorSystem
	}
}

// WithSessionDate overrides the calendar day the instance belongs to.
func WithSessionDate(day time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.SessionDate = day
	}
}

// WithSessionTimes overrides the scheduled start and end instants.
func WithSessionTimes(start, end time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ScheduledStart = start
		f.ScheduledEnd = end
	}
}

// WithSessionStatus overrides the lifecycle status.
func WithSessionStatus(status application.SessionStatus) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
	}
}

// WithSessionRoomID overrides the meeting room identifier.
func WithSessionRoomID(roomID string) SessionOption {
	return func(f *SessionFixture) {
		f.RoomID = roomID
	}
}

// WithSessionCreator overrides the creating principal kind.
func WithSessionCreator(creator application.CreatorKind) SessionOption {
	return func(f *SessionFixture) {
		f.Creator = creator
	}
}

// WithSessionNotifications sets the notification counter.
func WithSessionNotifications(sent int) SessionOption {
	return func(f *SessionFixture) {
		f.NotificationsSent = sent
	}
}

// WithSessionTimestamps sets both created and updated timestamps on the
// fixture.
func WithSessionTimestamps(created, updated time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence converts the fixture into its stored representation.
func (f SessionFixture) Persistence() persistence.SessionInstance {
	return persistence.SessionInstance{
		ID:                f.ID,
		RuleID:            copyStringPtr(f.RuleID),
		SessionDate:       f.SessionDate,
		ScheduledStart:    f.ScheduledStart,
		ScheduledEnd:      f.ScheduledEnd,
		Status:            string(f.Status),
		RoomID:            f.RoomID,
		CreatorKind:       string(f.Creator),
		NotificationsSent: f.NotificationsSent,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// -------------------------- Activation fixtures --------------------------

// ActivationFixture represents a deterministic access grant. The default is
// an active monthly school grant starting on the reference day.
type ActivationFixture struct {
	ID           string
	Kind         application.ActivationKind
	ActivatorID  string
	DurationType application.DurationType
	StartDate    time.Time
	EndDate      time.Time
	Status       application.ActivationStatus
	Origin       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActivationOption configures the generated activation fixture.
type ActivationOption func(*ActivationFixture)

// NewActivationFixture returns a deterministic activation fixture with
// optional overrides.
func NewActivationFixture(opts ...ActivationOption) ActivationFixture {
	idx := atomic.AddUint64(&activationCounter, 1)
	start := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	fixture := ActivationFixture{
		ID:           fmt.Sprintf("activation-%03d", idx),
		Kind:         application.ActivationSchool,
		ActivatorID:  fmt.Sprintf("school-%03d", idx),
		DurationType: application.DurationMonthly,
		StartDate:    start,
		EndDate:      start.AddDate(0, 1, 0),
		Status:       application.ActivationActive,
		Origin:       "admin-console",
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithActivationID overrides the generated activation ID.
func WithActivationID(id string) ActivationOption {
	return func(f *ActivationFixture) {
		f.ID = id
	}
}

// WithActivationKind sets the kind and the activator it applies to.
func WithActivationKind(kind application.ActivationKind, activatorID string) ActivationOption {
	return func(f *ActivationFixture) {
		f.Kind = kind
		f.ActivatorID = activatorID
	}
}

// WithActivationDuration overrides the duration type.
func WithActivationDuration(duration application.DurationType) ActivationOption {
	return func(f *ActivationFixture) {
		f.DurationType = duration
	}
}

// WithActivationDates overrides the grant's date range.
func WithActivationDates(start, end time.Time) ActivationOption {
	return func(f *ActivationFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithActivationStatus overrides the lifecycle status.
func WithActivationStatus(status application.ActivationStatus) ActivationOption {
	return func(f *ActivationFixture) {
		f.Status = status
	}
}

// WithActivationOrigin overrides the recorded origin.
func WithActivationOrigin(origin string) ActivationOption {
	return func(f *ActivationFixture) {
		f.Origin = origin
	}
}

// Persistence converts the fixture into its stored representation.
func (f ActivationFixture) Persistence() persistence.ActivationRecord {
	return persistence.ActivationRecord{
		ID:           f.ID,
		Kind:         string(f.Kind),
		ActivatorID:  f.ActivatorID,
		DurationType: string(f.DurationType),
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		Status:       string(f.Status),
		Origin:       f.Origin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Params converts the fixture into activation parameters for the
// activation service.
func (f ActivationFixture) Params() application.ActivateParams {
	return application.ActivateParams{
		Kind:         f.Kind,
		ActivatorID:  f.ActivatorID,
		DurationType: f.DurationType,
		Origin:       f.Origin,
	}
}

// --------------------------- Timetable fixtures ---------------------------

// SlotOption configures the generated timetable slot fixture.
type SlotOption func(*persistence.TimetableSlot)

// NewSlotFixture returns a deterministic timetable slot. The default is an
// active Monday 08:00-10:00 slot for school-001.
func NewSlotFixture(opts ...SlotOption) persistence.TimetableSlot {
	idx := atomic.AddUint64(&slotCounter, 1)
	slot := persistence.TimetableSlot{
		ID:        fmt.Sprintf("slot-%03d", idx),
		SchoolID:  "school-001",
		DayOfWeek: time.Monday,
		StartHour: 8,
		EndHour:   10,
		IsActive:  true,
	}
	for _, opt := range opts {
		opt(&slot)
	}
	return slot
}

// WithSlotID overrides the generated slot ID.
func WithSlotID(id string) SlotOption {
	return func(s *persistence.TimetableSlot) {
		s.ID = id
	}
}

// WithSlotSchool overrides the school the slot belongs to.
func WithSlotSchool(schoolID string) SlotOption {
	return func(s *persistence.TimetableSlot) {
		s.SchoolID = schoolID
	}
}

// WithSlotDay overrides the weekday the slot applies to.
func WithSlotDay(day time.Weekday) SlotOption {
	return func(s *persistence.TimetableSlot) {
		s.DayOfWeek = day
	}
}

// WithSlotHours sets the slot's start and end wall-clock times.
func WithSlotHours(startHour, startMinute, endHour, endMinute int) SlotOption {
	return func(s *persistence.TimetableSlot) {
		s.StartHour = startHour
		s.StartMinute = startMinute
		s.EndHour = endHour
		s.EndMinute = endMinute
	}
}

// WithSlotInactive marks the slot inactive.
func WithSlotInactive() SlotOption {
	return func(s *persistence.TimetableSlot) {
		s.IsActive = false
	}
}

// --------------------------- Directory fixtures ---------------------------

// TeacherFixture represents a deterministic directory entry. The default is
// a non-exempt teacher affiliated with school-001.
type TeacherFixture struct {
	TeacherID string
	SchoolID  *string
	Exempt    bool
}

// TeacherOption configures the generated teacher fixture.
type TeacherOption func(*TeacherFixture)

// NewTeacherFixture returns a deterministic teacher fixture with optional
// overrides.
func NewTeacherFixture(opts ...TeacherOption) TeacherFixture {
	idx := atomic.AddUint64(&teacherCounter, 1)
	school := "school-001"
	fixture := TeacherFixture{
		TeacherID: fmt.Sprintf("teacher-%03d", idx),
		SchoolID:  &school,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTeacherID overrides the generated teacher ID.
func WithTeacherID(id string) TeacherOption {
	return func(f *TeacherFixture) {
		f.TeacherID = id
	}
}

// WithTeacherSchool overrides the school affiliation.
func WithTeacherSchool(schoolID string) TeacherOption {
	return func(f *TeacherFixture) {
		f.SchoolID = &schoolID
	}
}

// WithoutTeacherSchool marks the teacher unaffiliated.
func WithoutTeacherSchool() TeacherOption {
	return func(f *TeacherFixture) {
		f.SchoolID = nil
	}
}

// WithTeacherExempt places the teacher on the administrative allow list.
func WithTeacherExempt() TeacherOption {
	return func(f *TeacherFixture) {
		f.Exempt = true
	}
}

// Persistence converts the fixture into its stored representation.
func (f TeacherFixture) Persistence() persistence.DirectoryEntry {
	return persistence.DirectoryEntry{
		TeacherID: f.TeacherID,
		SchoolID:  copyStringPtr(f.SchoolID),
		Exempt:    f.Exempt,
	}
}

// Principal converts the fixture into the directory shape consumed by
// access evaluation.
func (f TeacherFixture) Principal() application.PrincipalInfo {
	return application.PrincipalInfo{
		TeacherID: f.TeacherID,
		SchoolID:  copyStringPtr(f.SchoolID),
		Exempt:    f.Exempt,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
