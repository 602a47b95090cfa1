package recurrence

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, value string) Date {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return d
}

func expandAll(t *testing.T, rule Rule, windowDays int) []Draft {
	t.Helper()
	engine := NewEngine(time.UTC)
	windowStart := rule.StartDate.At(TimeOfDay{}, time.UTC)
	drafts, err := engine.Expand(rule, ExpandOptions{
		WindowStart: windowStart,
		WindowEnd:   windowStart.AddDate(0, 0, windowDays),
		Now:         windowStart.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	return drafts
}

func assertDates(t *testing.T, drafts []Draft, want ...string) {
	t.Helper()
	if len(drafts) != len(want) {
		t.Fatalf("expected %d drafts, got %d: %v", len(want), len(drafts), drafts)
	}
	for i, expected := range want {
		if got := drafts[i].Date.String(); got != expected {
			t.Errorf("draft %d: expected date %s, got %s", i, expected, got)
		}
	}
}

func TestEngine_Expand_Weekly(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		StartTime: TimeOfDay{Hour: 18, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-01-06"),
	}

	drafts := expandAll(t, rule, 13)
	assertDates(t, drafts, "2025-01-06", "2025-01-08", "2025-01-13", "2025-01-15")
}

func TestEngine_Expand_BiweeklySkipsAlternateWeeks(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeBiweekly,
		Weekdays:  []time.Weekday{time.Friday},
		StartTime: TimeOfDay{Hour: 9, Minute: 30},
		Duration:  45 * time.Minute,
		StartDate: mustDate(t, "2025-01-03"),
	}

	drafts := expandAll(t, rule, 27)
	assertDates(t, drafts, "2025-01-03", "2025-01-17")
}

func TestEngine_Expand_DailyInterval(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeDaily,
		Interval:  3,
		StartTime: TimeOfDay{Hour: 8, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-01-01"),
	}

	drafts := expandAll(t, rule, 9)
	assertDates(t, drafts, "2025-01-01", "2025-01-04", "2025-01-07", "2025-01-10")
}

func TestEngine_Expand_CustomDates(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeCustom,
		Dates:     []Date{mustDate(t, "2025-02-14"), mustDate(t, "2025-02-03")},
		StartTime: TimeOfDay{Hour: 16, Minute: 15},
		Duration:  90 * time.Minute,
		StartDate: mustDate(t, "2025-02-01"),
	}

	drafts := expandAll(t, rule, 30)
	assertDates(t, drafts, "2025-02-03", "2025-02-14")
}

func TestEngine_Expand_SkipsExistingDates(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeDaily,
		Interval:  1,
		StartTime: TimeOfDay{Hour: 10, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-03-01"),
	}

	engine := NewEngine(time.UTC)
	windowStart := rule.StartDate.At(TimeOfDay{}, time.UTC)
	opts := ExpandOptions{
		WindowStart: windowStart,
		WindowEnd:   windowStart.AddDate(0, 0, 4),
		Now:         windowStart.Add(-time.Hour),
	}

	first, err := engine.Expand(rule, opts)
	if err != nil {
		t.Fatalf("first expansion failed: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected 5 drafts, got %d", len(first))
	}

	opts.Existing = make(map[Date]struct{}, len(first))
	for _, draft := range first {
		opts.Existing[draft.Date] = struct{}{}
	}

	second, err := engine.Expand(rule, opts)
	if err != nil {
		t.Fatalf("second expansion failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no drafts on re-expansion, got %d", len(second))
	}
}

func TestEngine_Expand_NeverBackfillsThePast(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeDaily,
		Interval:  1,
		StartTime: TimeOfDay{Hour: 7, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-01-01"),
	}

	engine := NewEngine(time.UTC)
	windowStart := rule.StartDate.At(TimeOfDay{}, time.UTC)
	now := time.Date(2025, 1, 3, 7, 0, 0, 0, time.UTC)

	drafts, err := engine.Expand(rule, ExpandOptions{
		WindowStart: windowStart,
		WindowEnd:   windowStart.AddDate(0, 0, 4),
		Now:         now,
	})
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}

	// Jan 3 starts exactly at now, which is not strictly in the future.
	assertDates(t, drafts, "2025-01-04", "2025-01-05")
}

func TestEngine_Expand_RespectsRuleEndDate(t *testing.T) {
	t.Parallel()

	end := mustDate(t, "2025-01-05")
	rule := Rule{
		ID:        "rule-1",
		Type:      TypeDaily,
		Interval:  1,
		StartTime: TimeOfDay{Hour: 12, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-01-01"),
		EndDate:   &end,
	}

	drafts := expandAll(t, rule, 30)
	assertDates(t, drafts, "2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05")
}

func TestEngine_Expand_ZeroMatchWindow(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Sunday},
		StartTime: TimeOfDay{Hour: 9, Minute: 0},
		Duration:  time.Hour,
		StartDate: mustDate(t, "2025-01-06"),
	}

	engine := NewEngine(time.UTC)
	// Monday through Wednesday: no Sunday in range.
	windowStart := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	drafts, err := engine.Expand(rule, ExpandOptions{
		WindowStart: windowStart,
		WindowEnd:   windowStart.AddDate(0, 0, 2),
		Now:         windowStart,
	})
	if err != nil {
		t.Fatalf("Expand returned error on zero-match window: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("expected no drafts, got %d", len(drafts))
	}
}

func TestEngine_Expand_DraftCarriesDuration(t *testing.T) {
	t.Parallel()

	rule := Rule{
		ID:        "rule-1",
		Type:      TypeDaily,
		Interval:  1,
		StartTime: TimeOfDay{Hour: 14, Minute: 30},
		Duration:  50 * time.Minute,
		StartDate: mustDate(t, "2025-01-01"),
	}

	drafts := expandAll(t, rule, 0)
	if len(drafts) != 1 {
		t.Fatalf("expected a single draft, got %d", len(drafts))
	}
	draft := drafts[0]
	if got := draft.Start.Hour(); got != 14 {
		t.Errorf("expected start hour 14, got %d", got)
	}
	if got := draft.End.Sub(draft.Start); got != 50*time.Minute {
		t.Errorf("expected 50m duration, got %v", got)
	}
	if !draft.End.After(draft.Start) {
		t.Error("expected end after start")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	start := Date{Year: 2025, Month: time.January, Day: 10}
	before := Date{Year: 2025, Month: time.January, Day: 5}

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{
			name: "weekly without weekdays",
			rule: Rule{Type: TypeWeekly, Interval: 1, Duration: time.Hour, StartDate: start},
			want: ErrMissingWeekdays,
		},
		{
			name: "biweekly without weekdays",
			rule: Rule{Type: TypeBiweekly, Duration: time.Hour, StartDate: start},
			want: ErrMissingWeekdays,
		},
		{
			name: "custom without dates",
			rule: Rule{Type: TypeCustom, Duration: time.Hour, StartDate: start},
			want: ErrMissingDates,
		},
		{
			name: "custom date before start",
			rule: Rule{Type: TypeCustom, Dates: []Date{before}, Duration: time.Hour, StartDate: start},
			want: ErrDateOutOfRange,
		},
		{
			name: "end before start",
			rule: Rule{Type: TypeDaily, Interval: 1, Duration: time.Hour, StartDate: start, EndDate: &before},
			want: ErrInvalidDateRange,
		},
		{
			name: "zero interval",
			rule: Rule{Type: TypeDaily, Duration: time.Hour, StartDate: start},
			want: ErrInvalidInterval,
		},
		{
			name: "zero duration",
			rule: Rule{Type: TypeDaily, Interval: 1, StartDate: start},
			want: ErrInvalidDuration,
		},
		{
			name: "unspecified type",
			rule: Rule{Duration: time.Hour, StartDate: start},
			want: ErrInvalidRuleType,
		},
		{
			name: "valid biweekly ignores interval",
			rule: Rule{Type: TypeBiweekly, Weekdays: []time.Weekday{time.Friday}, Duration: time.Hour, StartDate: start},
			want: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.rule)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseRuleTypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, rt := range []RuleType{TypeDaily, TypeWeekly, TypeBiweekly, TypeCustom} {
		parsed, err := ParseRuleType(rt.String())
		if err != nil {
			t.Fatalf("ParseRuleType(%q) failed: %v", rt, err)
		}
		if parsed != rt {
			t.Errorf("expected %v, got %v", rt, parsed)
		}
	}

	if _, err := ParseRuleType("hourly"); !errors.Is(err, ErrInvalidRuleType) {
		t.Fatalf("expected ErrInvalidRuleType, got %v", err)
	}
}
