package recurrence

import (
	"errors"
	"time"
)

// RuleType identifies the supported recurrence patterns.
type RuleType int

const (
	// TypeUnspecified indicates the rule type is not set.
	TypeUnspecified RuleType = iota
	// TypeDaily generates occurrences every interval-th day.
	TypeDaily
	// TypeWeekly generates occurrences on the selected weekdays of every
	// interval-th week.
	TypeWeekly
	// TypeBiweekly generates occurrences on the selected weekdays of every
	// second week; the interval is pinned to two regardless of input.
	TypeBiweekly
	// TypeCustom generates occurrences on an explicit list of dates.
	TypeCustom
)

// String returns the storage label for the rule type.
func (t RuleType) String() string {
	switch t {
	case TypeDaily:
		return "daily"
	case TypeWeekly:
		return "weekly"
	case TypeBiweekly:
		return "biweekly"
	case TypeCustom:
		return "custom"
	default:
		return "unspecified"
	}
}

// ParseRuleType maps a storage label back to a RuleType.
func ParseRuleType(label string) (RuleType, error) {
	switch label {
	case "daily":
		return TypeDaily, nil
	case "weekly":
		return TypeWeekly, nil
	case "biweekly":
		return TypeBiweekly, nil
	case "custom":
		return TypeCustom, nil
	default:
		return TypeUnspecified, ErrInvalidRuleType
	}
}

// Rule describes a recurrence configuration for an online class.
type Rule struct {
	ID        string
	Type      RuleType
	Interval  int
	Weekdays  []time.Weekday
	Dates     []Date
	StartTime TimeOfDay
	Duration  time.Duration
	StartDate Date
	EndDate   *Date
}

// Draft is a planned session occurrence that has not been persisted yet.
type Draft struct {
	RuleID string
	Date   Date
	Start  time.Time
	End    time.Time
}

// ExpandOptions bounds a single expansion pass.
type ExpandOptions struct {
	// WindowStart and WindowEnd delimit the rolling horizon being filled.
	WindowStart time.Time
	WindowEnd   time.Time
	// Now suppresses drafts that would start in the past.
	Now time.Time
	// Existing holds the calendar days for which an instance of this rule
	// was already generated. Matching days in the set are skipped, which is
	// what makes repeated expansion idempotent.
	Existing map[Date]struct{}
}

var (
	// ErrInvalidRuleType indicates the rule type is not supported.
	ErrInvalidRuleType = errors.New("recurrence: invalid rule type")
	// ErrInvalidInterval indicates the interval is below one.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrMissingWeekdays indicates a day-filtered rule has no weekday set.
	ErrMissingWeekdays = errors.New("recurrence: weekly and biweekly rules require at least one weekday")
	// ErrMissingDates indicates a custom rule has no explicit dates.
	ErrMissingDates = errors.New("recurrence: custom rules require at least one date")
	// ErrDateOutOfRange indicates a custom date falls outside the rule bounds.
	ErrDateOutOfRange = errors.New("recurrence: custom dates must fall within the rule date range")
	// ErrInvalidDateRange indicates the end date precedes the start date.
	ErrInvalidDateRange = errors.New("recurrence: end date must not precede start date")
	// ErrInvalidDuration indicates the session duration is not positive.
	ErrInvalidDuration = errors.New("recurrence: duration must be positive")
)

// Validate rejects malformed rules. Rules are validated once at creation;
// a rule that passes here never causes Expand to fail.
func Validate(rule Rule) error {
	switch rule.Type {
	case TypeDaily:
		if rule.Interval < 1 {
			return ErrInvalidInterval
		}
	case TypeWeekly:
		if rule.Interval < 1 {
			return ErrInvalidInterval
		}
		if len(rule.Weekdays) == 0 {
			return ErrMissingWeekdays
		}
	case TypeBiweekly:
		if len(rule.Weekdays) == 0 {
			return ErrMissingWeekdays
		}
	case TypeCustom:
		if len(rule.Dates) == 0 {
			return ErrMissingDates
		}
	default:
		return ErrInvalidRuleType
	}

	if rule.Duration <= 0 {
		return ErrInvalidDuration
	}
	if rule.EndDate != nil && rule.EndDate.Before(rule.StartDate) {
		return ErrInvalidDateRange
	}
	if rule.Type == TypeCustom {
		for _, d := range rule.Dates {
			if d.Before(rule.StartDate) {
				return ErrDateOutOfRange
			}
			if rule.EndDate != nil && d.After(*rule.EndDate) {
				return ErrDateOutOfRange
			}
		}
	}
	return nil
}

// Engine expands recurrence rules into session drafts.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that anchors times of day to the provided
// location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Expand walks every calendar day of the bounded window and emits a draft
// for each day the rule matches.
//
// Semantics:
//   - The window is the intersection of [WindowStart, WindowEnd] and the
//     rule's own [StartDate, EndDate] bounds.
//   - Drafts whose start would not be strictly after Now are skipped; the
//     past is never backfilled.
//   - Days present in Existing are skipped, so re-running an expansion over
//     an overlapping window produces no duplicates.
//
// A zero-match window yields an empty result, not an error.
func (e *Engine) Expand(rule Rule, opts ExpandOptions) ([]Draft, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}

	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	lower := rule.StartDate
	if ws := DateOf(opts.WindowStart.In(loc)); ws.After(lower) {
		lower = ws
	}
	upper := DateOf(opts.WindowEnd.In(loc))
	if rule.EndDate != nil && upper.After(*rule.EndDate) {
		upper = *rule.EndDate
	}
	if lower.After(upper) {
		return nil, nil
	}

	weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdaySet[day] = struct{}{}
	}
	dateSet := make(map[Date]struct{}, len(rule.Dates))
	for _, d := range rule.Dates {
		dateSet[d] = struct{}{}
	}

	anchorWeek := rule.StartDate.StartOfWeek()
	drafts := make([]Draft, 0)

	for day := lower; !day.After(upper); day = day.AddDays(1) {
		if !matches(rule, day, weekdaySet, dateSet, anchorWeek) {
			continue
		}
		if _, ok := opts.Existing[day]; ok {
			continue
		}
		start := day.At(rule.StartTime, loc)
		if !start.After(opts.Now) {
			continue
		}
		drafts = append(drafts, Draft{
			RuleID: rule.ID,
			Date:   day,
			Start:  start,
			End:    start.Add(rule.Duration),
		})
	}

	return drafts, nil
}

// matches reports whether the rule selects the given calendar day. Week
// parity counts Monday-start weeks elapsed since the week containing the
// rule's start date.
func matches(rule Rule, day Date, weekdays map[time.Weekday]struct{}, dates map[Date]struct{}, anchorWeek Date) bool {
	switch rule.Type {
	case TypeDaily:
		return day.DaysSince(rule.StartDate)%rule.Interval == 0
	case TypeWeekly:
		if _, ok := weekdays[day.Weekday()]; !ok {
			return false
		}
		return weeksBetween(anchorWeek, day)%rule.Interval == 0
	case TypeBiweekly:
		if _, ok := weekdays[day.Weekday()]; !ok {
			return false
		}
		return weeksBetween(anchorWeek, day)%2 == 0
	case TypeCustom:
		_, ok := dates[day]
		return ok
	default:
		return false
	}
}

func weeksBetween(anchorWeek, day Date) int {
	return day.StartOfWeek().DaysSince(anchorWeek) / 7
}
