// Package sqlite implements the persistence repositories on SQLite via
// database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Store owns the database handle and implements every repository
// interface of the persistence package.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn and applies the pragmas the
// repositories rely on.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}

	// The driver serializes writes anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent expansion.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recurrence_rules (
		id TEXT PRIMARY KEY,
		scope_kind TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		interval_value INTEGER NOT NULL,
		weekdays INTEGER NOT NULL DEFAULT 0,
		custom_dates TEXT NOT NULL DEFAULT '',
		start_hour INTEGER NOT NULL,
		start_minute INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		start_date TEXT NOT NULL,
		end_date TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		paused_at TEXT,
		occurrences_generated INTEGER NOT NULL DEFAULT 0,
		last_generated_at TEXT,
		horizon_end TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_instances (
		id TEXT PRIMARY KEY,
		rule_id TEXT REFERENCES recurrence_rules(id),
		session_date TEXT NOT NULL,
		scheduled_start TEXT NOT NULL,
		scheduled_end TEXT NOT NULL CHECK (scheduled_end > scheduled_start),
		status TEXT NOT NULL,
		room_id TEXT NOT NULL UNIQUE,
		creator_kind TEXT NOT NULL,
		notifications_sent INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (rule_id, session_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_instances_rule
		ON session_instances (rule_id, session_date)`,
	`CREATE INDEX IF NOT EXISTS idx_session_instances_start
		ON session_instances (scheduled_start)`,
	`CREATE TABLE IF NOT EXISTS activations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		activator_id TEXT NOT NULL,
		duration_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activations_lookup
		ON activations (kind, activator_id, status)`,
	`CREATE TABLE IF NOT EXISTS timetable_slots (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		start_hour INTEGER NOT NULL,
		start_minute INTEGER NOT NULL DEFAULT 0,
		end_hour INTEGER NOT NULL,
		end_minute INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_slots_lookup
		ON timetable_slots (school_id, day_of_week)`,
	`CREATE TABLE IF NOT EXISTS directory_teachers (
		teacher_id TEXT PRIMARY KEY,
		school_id TEXT,
		exempt INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the schema. Every statement is idempotent, so running it
// on an already migrated database is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// mapError translates driver errors into the persistence sentinels the
// services test against.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", persistence.ErrDuplicate, msg)
	case strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, msg)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

// encodeWeekdays packs a weekday set into a bitmask, bit 0 = Sunday.
func encodeWeekdays(days []time.Weekday) int64 {
	var mask int64
	for _, day := range days {
		mask |= 1 << uint(day)
	}
	return mask
}

func decodeWeekdays(mask int64) []time.Weekday {
	if mask == 0 {
		return nil
	}
	days := make([]time.Weekday, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			days = append(days, day)
		}
	}
	return days
}

// encodeDates joins calendar days into a comma separated column value.
func encodeDates(dates []time.Time) string {
	if len(dates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, formatDate(d))
	}
	return strings.Join(parts, ",")
}

func decodeDates(value string) ([]time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	dates := make([]time.Time, 0, len(parts))
	for _, part := range parts {
		d, err := parseDate(part)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}
