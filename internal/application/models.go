package application

import (
	"time"

	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/timewindow"
)

// ScopeKind identifies what a recurrence rule is attached to.
type ScopeKind string

const (
	// ScopeSchool attaches a rule to a whole school.
	ScopeSchool ScopeKind = "school"
	// ScopeTeacher attaches a rule to an individual teacher.
	ScopeTeacher ScopeKind = "teacher"
	// ScopeClass attaches a rule to a single class group.
	ScopeClass ScopeKind = "class"
)

// Rule is a recurrence rule together with its generation bookkeeping.
type Rule struct {
	ID                   string
	Scope                ScopeKind
	ScopeID              string
	Type                 recurrence.RuleType
	Interval             int
	Weekdays             []time.Weekday
	Dates                []recurrence.Date
	StartTime            recurrence.TimeOfDay
	DurationMinutes      int
	StartDate            recurrence.Date
	EndDate              *recurrence.Date
	IsActive             bool
	PausedAt             *time.Time
	OccurrencesGenerated int
	LastGeneratedAt      *time.Time
	HorizonEnd           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SessionStatus tracks a session instance through its lifecycle.
type SessionStatus string

const (
	// SessionScheduled is the initial status of every instance.
	SessionScheduled SessionStatus = "scheduled"
	// SessionLive marks an instance whose meeting is running.
	SessionLive SessionStatus = "live"
	// SessionEnded marks an instance whose meeting finished.
	SessionEnded SessionStatus = "ended"
	// SessionCanceled marks an instance called off before going live.
	SessionCanceled SessionStatus = "canceled"
)

// CreatorKind records which kind of principal created a session.
type CreatorKind string

const (
	// CreatorTeacher marks sessions created by a teacher.
	CreatorTeacher CreatorKind = "teacher"
	// CreatorSchool marks sessions created by school administration.
	CreatorSchool CreatorKind = "school"
	// CreatorSystem marks sessions generated from a recurrence rule.
	CreatorSystem CreatorKind = "system"
)

// SessionInstance is one concrete occurrence of an online class. RuleID is
// nil for standalone sessions.
type SessionInstance struct {
	ID                string
	RuleID            *string
	Date              recurrence.Date
	ScheduledStart    time.Time
	ScheduledEnd      time.Time
	Status            SessionStatus
	RoomID            string
	Creator           CreatorKind
	NotificationsSent int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ActivationKind distinguishes the two activator kinds.
type ActivationKind string

const (
	// ActivationSchool grants access to every teacher of a school, within
	// the school's allowed time windows.
	ActivationSchool ActivationKind = "school"
	// ActivationTeacher grants an individual teacher unrestricted access.
	ActivationTeacher ActivationKind = "teacher"
)

// ActivationStatus tracks an activation record through its lifecycle.
type ActivationStatus string

const (
	// ActivationActive is the initial status of every grant.
	ActivationActive ActivationStatus = "active"
	// ActivationExpired marks grants whose end date passed.
	ActivationExpired ActivationStatus = "expired"
	// ActivationCancelled marks grants revoked regardless of dates.
	ActivationCancelled ActivationStatus = "cancelled"
)

// DurationType names the supported grant lengths.
type DurationType string

const (
	DurationDaily     DurationType = "daily"
	DurationWeekly    DurationType = "weekly"
	DurationMonthly   DurationType = "monthly"
	DurationQuarterly DurationType = "quarterly"
	DurationSemestral DurationType = "semestral"
	DurationYearly    DurationType = "yearly"
)

// ActivationWindow is the time-bounded core shared by both activation
// kinds.
type ActivationWindow struct {
	ID           string
	ActivatorID  string
	DurationType DurationType
	StartDate    time.Time
	EndDate      time.Time
	Status       ActivationStatus
	Origin       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Covers reports whether the window spans the given instant.
func (w ActivationWindow) Covers(now time.Time) bool {
	return !now.Before(w.StartDate) && !now.After(w.EndDate)
}

// SchoolActivation is a grant scoped to a whole school.
type SchoolActivation struct {
	ActivationWindow
}

// TeacherActivation is a grant scoped to an individual teacher.
type TeacherActivation struct {
	ActivationWindow
}

// PrincipalInfo is what the external directory knows about a teacher for
// access evaluation purposes.
type PrincipalInfo struct {
	TeacherID string
	SchoolID  *string
	Exempt    bool
}

// DecisionReason labels an access decision with a stable, client-facing
// string.
type DecisionReason string

const (
	// ReasonExempt marks principals on the administrative allow list.
	ReasonExempt DecisionReason = "exempt"
	// ReasonPersonalActive marks teachers with their own current grant.
	ReasonPersonalActive DecisionReason = "personal-active"
	// ReasonNoEntitlement marks principals with no current grant at all.
	ReasonNoEntitlement DecisionReason = "no-entitlement"
)

// Decision is the outcome of an access evaluation. Denial is an expected
// result, not an error.
type Decision struct {
	Allowed         bool
	Reason          DecisionReason
	ActivationKind  *ActivationKind
	TimeWindow      *timewindow.Classification
	NextAvailableAt *time.Time
	// EntitlementEnd bounds any credential issued on this decision. Nil for
	// exempt principals.
	EntitlementEnd *time.Time
}

// CreateRuleParams wraps the data required to define a recurrence rule.
type CreateRuleParams struct {
	Scope           ScopeKind
	ScopeID         string
	Type            recurrence.RuleType
	Interval        int
	Weekdays        []time.Weekday
	Dates           []recurrence.Date
	StartTime       recurrence.TimeOfDay
	DurationMinutes int
	StartDate       recurrence.Date
	EndDate         *recurrence.Date
}

// CreateSessionParams wraps the data required to create a standalone
// session.
type CreateSessionParams struct {
	Start           time.Time
	DurationMinutes int
	Creator         CreatorKind
}

// ListSessionsParams narrows session listings.
type ListSessionsParams struct {
	RuleID      *string
	Status      SessionStatus
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// ActivateParams wraps the data required to record a new grant.
type ActivateParams struct {
	Kind         ActivationKind
	ActivatorID  string
	DurationType DurationType
	Origin       string
}

// JoinToken is an immutable session credential. It is never refreshed in
// place; callers obtain a new one when it expires.
type JoinToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
