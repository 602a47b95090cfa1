package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

const sessionColumns = `id, rule_id, session_date, scheduled_start, scheduled_end,
	status, room_id, creator_kind, notifications_sent, created_at, updated_at`

// CreateSession inserts a session instance. The (rule_id, session_date)
// uniqueness constraint surfaces as persistence.ErrDuplicate, which is how
// concurrent expansions of the same rule stay race-free.
func (s *Store) CreateSession(ctx context.Context, session persistence.SessionInstance) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO session_instances (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var ruleID sql.NullString
	if session.RuleID != nil {
		ruleID = sql.NullString{String: *session.RuleID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		ruleID,
		formatDate(session.SessionDate),
		formatTime(session.ScheduledStart),
		formatTime(session.ScheduledEnd),
		session.Status,
		session.RoomID,
		session.CreatorKind,
		session.NotificationsSent,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	return mapError(err)
}

// GetSession loads one instance by id.
func (s *Store) GetSession(ctx context.Context, id string) (persistence.SessionInstance, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_instances WHERE id = ?`
	return scanSession(s.db.QueryRowContext(ctx, query, id))
}

// UpdateSession replaces the mutable columns of an instance.
func (s *Store) UpdateSession(ctx context.Context, session persistence.SessionInstance) error {
	query := `UPDATE session_instances SET
		status = ?, notifications_sent = ?, scheduled_start = ?, scheduled_end = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		session.Status,
		session.NotificationsSent,
		formatTime(session.ScheduledStart),
		formatTime(session.ScheduledEnd),
		formatTime(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// ListSessions returns instances matching the filter, ordered by scheduled
// start.
func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.SessionInstance, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.RuleID != nil {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, *filter.RuleID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "scheduled_start > ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "scheduled_end < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	query := `SELECT ` + sessionColumns + ` FROM session_instances`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_start, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.SessionInstance, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, mapError(rows.Err())
}

// SessionDatesForRule returns the calendar days that already hold an
// instance of the rule, regardless of status. Canceled days stay claimed.
func (s *Store) SessionDatesForRule(ctx context.Context, ruleID string) ([]time.Time, error) {
	query := `SELECT session_date FROM session_instances WHERE rule_id = ? ORDER BY session_date`

	rows, err := s.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	dates := make([]time.Time, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, mapError(err)
		}
		date, err := parseDate(value)
		if err != nil {
			return nil, fmt.Errorf("sqlite: session date for rule %s: %w", ruleID, err)
		}
		dates = append(dates, date)
	}
	return dates, mapError(rows.Err())
}

// CountSessionsForRule reports how many instances reference the rule.
func (s *Store) CountSessionsForRule(ctx context.Context, ruleID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_instances WHERE rule_id = ?`, ruleID,
	).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func scanSession(row rowScanner) (persistence.SessionInstance, error) {
	var (
		session        persistence.SessionInstance
		ruleID         sql.NullString
		sessionDate    string
		scheduledStart string
		scheduledEnd   string
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(
		&session.ID,
		&ruleID,
		&sessionDate,
		&scheduledStart,
		&scheduledEnd,
		&session.Status,
		&session.RoomID,
		&session.CreatorKind,
		&session.NotificationsSent,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.SessionInstance{}, mapError(err)
	}

	if ruleID.Valid {
		session.RuleID = &ruleID.String
	}
	if session.SessionDate, err = parseDate(sessionDate); err != nil {
		return persistence.SessionInstance{}, fmt.Errorf("sqlite: session %s date: %w", session.ID, err)
	}
	if session.ScheduledStart, err = parseTime(scheduledStart); err != nil {
		return persistence.SessionInstance{}, fmt.Errorf("sqlite: session %s start: %w", session.ID, err)
	}
	if session.ScheduledEnd, err = parseTime(scheduledEnd); err != nil {
		return persistence.SessionInstance{}, fmt.Errorf("sqlite: session %s end: %w", session.ID, err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.SessionInstance{}, fmt.Errorf("sqlite: session %s created at: %w", session.ID, err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.SessionInstance{}, fmt.Errorf("sqlite: session %s updated at: %w", session.ID, err)
	}
	return session, nil
}
