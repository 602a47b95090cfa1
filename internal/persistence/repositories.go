package persistence

import (
	"context"
	"time"
)

// RuleRepository stores recurrence rule definitions.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule RecurrenceRule) error
	GetRule(ctx context.Context, id string) (RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule RecurrenceRule) error
	ListActiveRules(ctx context.Context) ([]RecurrenceRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// SessionFilter narrows session instance queries.
type SessionFilter struct {
	RuleID      *string
	Status      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// SessionRepository stores generated and standalone session instances.
// CreateSession reports ErrDuplicate when an instance already exists for
// the same (rule, session date) pair.
type SessionRepository interface {
	CreateSession(ctx context.Context, session SessionInstance) error
	GetSession(ctx context.Context, id string) (SessionInstance, error)
	UpdateSession(ctx context.Context, session SessionInstance) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]SessionInstance, error)
	SessionDatesForRule(ctx context.Context, ruleID string) ([]time.Time, error)
	CountSessionsForRule(ctx context.Context, ruleID string) (int, error)
}

// ActivationRepository stores time-bounded access grants.
type ActivationRepository interface {
	CreateActivation(ctx context.Context, record ActivationRecord) error
	GetActivation(ctx context.Context, id string) (ActivationRecord, error)
	// ListCurrent returns non-cancelled records whose date range covers now.
	ListCurrent(ctx context.Context, kind, activatorID string, now time.Time) ([]ActivationRecord, error)
	CancelActivation(ctx context.Context, id string, at time.Time) error
	// MarkExpired flips active records whose end date passed to expired and
	// reports how many rows changed. Safe to run repeatedly.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// TimetableRepository reads the school timetable this module never writes.
type TimetableRepository interface {
	ActiveSlots(ctx context.Context, schoolID string, day time.Weekday) ([]TimetableSlot, error)
}

// DirectoryRepository reads the teacher directory mirror.
type DirectoryRepository interface {
	LookupTeacher(ctx context.Context, teacherID string) (DirectoryEntry, error)
}
