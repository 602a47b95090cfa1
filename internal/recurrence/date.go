package recurrence

import (
	"fmt"
	"time"
)

// Date identifies a calendar day independent of any timezone. Rule matching
// and idempotence checks operate on calendar days, never on instants.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates an instant to its calendar day in the instant's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in 2006-01-02 form.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, fmt.Errorf("recurrence: invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// At combines the date with a time of day in the provided location.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.At(TimeOfDay{}, time.UTC).AddDate(0, 0, n))
}

// DaysSince counts whole calendar days elapsed since other. Negative when d
// precedes other.
func (d Date) DaysSince(other Date) int {
	a := d.At(TimeOfDay{}, time.UTC)
	b := other.At(TimeOfDay{}, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// Weekday reports the day of week.
func (d Date) Weekday() time.Weekday {
	return d.At(TimeOfDay{}, time.UTC).Weekday()
}

// Before reports whether d precedes other.
func (d Date) Before(other Date) bool {
	return d.DaysSince(other) < 0
}

// After reports whether d follows other.
func (d Date) After(other Date) bool {
	return d.DaysSince(other) > 0
}

// StartOfWeek returns the Monday beginning the week containing d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// String renders the date in 2006-01-02 form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
