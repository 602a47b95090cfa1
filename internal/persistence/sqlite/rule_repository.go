package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

const ruleColumns = `id, scope_kind, scope_id, rule_type, interval_value, weekdays,
	custom_dates, start_hour, start_minute, duration_minutes, start_date, end_date,
	is_active, paused_at, occurrences_generated, last_generated_at, horizon_end,
	created_at, updated_at`

// CreateRule inserts a new recurrence rule.
func (s *Store) CreateRule(ctx context.Context, rule persistence.RecurrenceRule) error {
	if rule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO recurrence_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rule.ID,
		rule.ScopeKind,
		rule.ScopeID,
		rule.RuleType,
		rule.Interval,
		encodeWeekdays(rule.Weekdays),
		encodeDates(rule.CustomDates),
		rule.StartHour,
		rule.StartMinute,
		rule.DurationMinutes,
		formatDate(rule.StartDate),
		dateColumn(rule.EndDate),
		boolColumn(rule.IsActive),
		formatTimePtr(rule.PausedAt),
		rule.OccurrencesGenerated,
		formatTimePtr(rule.LastGeneratedAt),
		formatTimePtr(rule.HorizonEnd),
		formatTime(rule.CreatedAt),
		formatTime(rule.UpdatedAt),
	)
	return mapError(err)
}

// GetRule loads a rule by id.
func (s *Store) GetRule(ctx context.Context, id string) (persistence.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules WHERE id = ?`
	return scanRule(s.db.QueryRowContext(ctx, query, id))
}

// UpdateRule replaces all mutable columns of a rule.
func (s *Store) UpdateRule(ctx context.Context, rule persistence.RecurrenceRule) error {
	query := `UPDATE recurrence_rules SET
		scope_kind = ?, scope_id = ?, rule_type = ?, interval_value = ?, weekdays = ?,
		custom_dates = ?, start_hour = ?, start_minute = ?, duration_minutes = ?,
		start_date = ?, end_date = ?, is_active = ?, paused_at = ?,
		occurrences_generated = ?, last_generated_at = ?, horizon_end = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		rule.ScopeKind,
		rule.ScopeID,
		rule.RuleType,
		rule.Interval,
		encodeWeekdays(rule.Weekdays),
		encodeDates(rule.CustomDates),
		rule.StartHour,
		rule.StartMinute,
		rule.DurationMinutes,
		formatDate(rule.StartDate),
		dateColumn(rule.EndDate),
		boolColumn(rule.IsActive),
		formatTimePtr(rule.PausedAt),
		rule.OccurrencesGenerated,
		formatTimePtr(rule.LastGeneratedAt),
		formatTimePtr(rule.HorizonEnd),
		formatTime(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// ListActiveRules returns every rule that is active and not paused,
// ordered by creation time.
func (s *Store) ListActiveRules(ctx context.Context) ([]persistence.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules
		WHERE is_active = 1 AND paused_at IS NULL
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rules := make([]persistence.RecurrenceRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, mapError(rows.Err())
}

// DeleteRule removes a rule definition.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_rules WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (persistence.RecurrenceRule, error) {
	var (
		rule            persistence.RecurrenceRule
		weekdayMask     int64
		customDates     string
		startDate       string
		endDate         sql.NullString
		isActive        int64
		pausedAt        sql.NullString
		lastGeneratedAt sql.NullString
		horizonEnd      sql.NullString
		createdAt       string
		updatedAt       string
	)

	err := row.Scan(
		&rule.ID,
		&rule.ScopeKind,
		&rule.ScopeID,
		&rule.RuleType,
		&rule.Interval,
		&weekdayMask,
		&customDates,
		&rule.StartHour,
		&rule.StartMinute,
		&rule.DurationMinutes,
		&startDate,
		&endDate,
		&isActive,
		&pausedAt,
		&rule.OccurrencesGenerated,
		&lastGeneratedAt,
		&horizonEnd,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.RecurrenceRule{}, mapError(err)
	}

	rule.Weekdays = decodeWeekdays(weekdayMask)
	rule.IsActive = isActive != 0

	if rule.CustomDates, err = decodeDates(customDates); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s custom dates: %w", rule.ID, err)
	}
	if rule.StartDate, err = parseDate(startDate); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s start date: %w", rule.ID, err)
	}
	if rule.EndDate, err = parseDateColumn(endDate); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s end date: %w", rule.ID, err)
	}
	if rule.PausedAt, err = parseTimePtr(pausedAt); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s paused at: %w", rule.ID, err)
	}
	if rule.LastGeneratedAt, err = parseTimePtr(lastGeneratedAt); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s last generated at: %w", rule.ID, err)
	}
	if rule.HorizonEnd, err = parseTimePtr(horizonEnd); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s horizon end: %w", rule.ID, err)
	}
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s created at: %w", rule.ID, err)
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.RecurrenceRule{}, fmt.Errorf("sqlite: rule %s updated at: %w", rule.ID, err)
	}
	return rule, nil
}

func dateColumn(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func parseDateColumn(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseDate(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolColumn(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
