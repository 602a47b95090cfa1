package persistence

import "time"

// RecurrenceRule is the stored form of a recurring online-class definition.
type RecurrenceRule struct {
	ID                   string
	ScopeKind            string
	ScopeID              string
	RuleType             string
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

// SessionInstance is one stored occurrence of an online class. RuleID is
// nil for standalone sessions. SessionDate carries the calendar day the
// instance was generated for; (RuleID, SessionDate) is unique.
type SessionInstance struct {
	ID                string
	RuleID            *string
	SessionDate       time.Time
	ScheduledStart    time.Time
	ScheduledEnd      time.Time
	Status            string
	RoomID            string
	CreatorKind       string
	NotificationsSent int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ActivationRecord is a stored time-bounded grant of online-class access.
type ActivationRecord struct {
	ID           string
	Kind         string
	ActivatorID  string
	DurationType string
	StartDate    time.Time
	EndDate      time.Time
	Status       string
	Origin       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DirectoryEntry is a read-only mirror of what the surrounding platform
// knows about a teacher. SchoolID is nil for unaffiliated teachers.
type DirectoryEntry struct {
	TeacherID string
	SchoolID  *string
	Exempt    bool
}

// TimetableSlot is a read-only school timetable entry.
type TimetableSlot struct {
	ID          string
	SchoolID    string
	DayOfWeek   time.Weekday
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	IsActive    bool
}
