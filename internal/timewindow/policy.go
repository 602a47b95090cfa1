package timewindow

import "time"

// margin is how far outside school hours online-class access extends:
// two hours before the first class and two hours after the last.
const margin = 2 * time.Hour

// Slot is one active timetable entry for a school day, ordered by start.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Reason labels a classification outcome.
type Reason string

const (
	// ReasonNoClasses grants access for days without any scheduled class.
	ReasonNoClasses Reason = "no_classes_scheduled"
	// ReasonBeforeSchool grants access in the morning margin.
	ReasonBeforeSchool Reason = "before_school_hours"
	// ReasonAfterSchool grants access in the evening margin.
	ReasonAfterSchool Reason = "after_school_hours"
	// ReasonDuringSchool denies access while classes run.
	ReasonDuringSchool Reason = "during_school_hours"
	// ReasonOutsideWindows denies access outside every margin.
	ReasonOutsideWindows Reason = "outside_allowed_windows"
)

// Classification is the outcome of evaluating an instant against a school
// day's allowed windows.
type Classification struct {
	InWindow        bool
	Reason          Reason
	WindowStart     *time.Time
	WindowEnd       *time.Time
	NextAvailableAt *time.Time
}

// SlotSource resolves the active timetable slots for a calendar day. Days
// without classes return an empty slice.
type SlotSource func(day time.Time) ([]Slot, error)

// Classify evaluates now against the allowed windows derived from today's
// timetable. Access is allowed on free days, in the two-hour margin before
// the first class and in the two-hour margin after the last class.
//
// lookahead resolves slots for subsequent days and is only consulted when
// now falls outside every window today; it may be nil, in which case the
// denial simply omits NextAvailableAt.
func Classify(today []Slot, now time.Time, lookahead SlotSource) (Classification, error) {
	if len(today) == 0 {
		return Classification{InWindow: true, Reason: ReasonNoClasses}, nil
	}

	firstStart := today[0].Start
	lastEnd := today[0].End
	for _, slot := range today[1:] {
		if slot.Start.Before(firstStart) {
			firstStart = slot.Start
		}
		if slot.End.After(lastEnd) {
			lastEnd = slot.End
		}
	}

	morningStart := firstStart.Add(-margin)
	eveningEnd := lastEnd.Add(margin)

	switch {
	case !now.Before(morningStart) && now.Before(firstStart):
		return Classification{
			InWindow:    true,
			Reason:      ReasonBeforeSchool,
			WindowStart: &morningStart,
			WindowEnd:   &firstStart,
		}, nil
	case !now.Before(lastEnd) && !now.After(eveningEnd):
		return Classification{
			InWindow:    true,
			Reason:      ReasonAfterSchool,
			WindowStart: &lastEnd,
			WindowEnd:   &eveningEnd,
		}, nil
	case !now.Before(firstStart) && now.Before(lastEnd):
		next := lastEnd
		return Classification{
			InWindow:        false,
			Reason:          ReasonDuringSchool,
			NextAvailableAt: &next,
		}, nil
	}

	out := Classification{InWindow: false, Reason: ReasonOutsideWindows}
	next, err := nextWindowStart(now, lookahead)
	if err != nil {
		return Classification{}, err
	}
	out.NextAvailableAt = next
	return out, nil
}

// nextWindowStart finds the start of the next allowed window: the morning
// margin of tomorrow's first class, or tomorrow midnight when tomorrow has
// no classes, since free days are allowed in full.
func nextWindowStart(now time.Time, lookahead SlotSource) (*time.Time, error) {
	if lookahead == nil {
		return nil, nil
	}

	day := startOfDay(now).AddDate(0, 0, 1)
	slots, err := lookahead(day)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return &day, nil
	}

	first := slots[0].Start
	for _, slot := range slots[1:] {
		if slot.Start.Before(first) {
			first = slot.Start
		}
	}
	next := first.Add(-margin)
	if next.Before(day) {
		next = day
	}
	return &next, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
