package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

// ActiveSlots returns the active timetable entries of a school for one
// weekday, ordered by start time.
func (s *Store) ActiveSlots(ctx context.Context, schoolID string, day time.Weekday) ([]persistence.TimetableSlot, error) {
	query := `SELECT id, school_id, day_of_week, start_hour, start_minute, end_hour, end_minute, is_active
		FROM timetable_slots
		WHERE school_id = ? AND day_of_week = ? AND is_active = 1
		ORDER BY start_hour, start_minute, id`

	rows, err := s.db.QueryContext(ctx, query, schoolID, int(day))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	slots := make([]persistence.TimetableSlot, 0)
	for rows.Next() {
		var (
			slot      persistence.TimetableSlot
			dayOfWeek int64
			isActive  int64
		)
		err := rows.Scan(
			&slot.ID,
			&slot.SchoolID,
			&dayOfWeek,
			&slot.StartHour,
			&slot.StartMinute,
			&slot.EndHour,
			&slot.EndMinute,
			&isActive,
		)
		if err != nil {
			return nil, mapError(err)
		}
		slot.DayOfWeek = time.Weekday(dayOfWeek)
		slot.IsActive = isActive != 0
		slots = append(slots, slot)
	}
	return slots, mapError(rows.Err())
}

// UpsertTimetableSlot refreshes one mirrored timetable entry. The mirror
// is fed from the outside; this module only reads it during evaluation.
func (s *Store) UpsertTimetableSlot(ctx context.Context, slot persistence.TimetableSlot) error {
	if slot.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO timetable_slots
		(id, school_id, day_of_week, start_hour, start_minute, end_hour, end_minute, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			school_id = excluded.school_id,
			day_of_week = excluded.day_of_week,
			start_hour = excluded.start_hour,
			start_minute = excluded.start_minute,
			end_hour = excluded.end_hour,
			end_minute = excluded.end_minute,
			is_active = excluded.is_active`

	_, err := s.db.ExecContext(ctx, query,
		slot.ID,
		slot.SchoolID,
		int(slot.DayOfWeek),
		slot.StartHour,
		slot.StartMinute,
		slot.EndHour,
		slot.EndMinute,
		boolColumn(slot.IsActive),
	)
	return mapError(err)
}

// LookupTeacher reads one entry of the mirrored teacher directory.
func (s *Store) LookupTeacher(ctx context.Context, teacherID string) (persistence.DirectoryEntry, error) {
	var (
		entry    persistence.DirectoryEntry
		schoolID sql.NullString
		exempt   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT teacher_id, school_id, exempt FROM directory_teachers WHERE teacher_id = ?`,
		teacherID,
	).Scan(&entry.TeacherID, &schoolID, &exempt)
	if err != nil {
		return persistence.DirectoryEntry{}, mapError(err)
	}

	if schoolID.Valid {
		entry.SchoolID = &schoolID.String
	}
	entry.Exempt = exempt != 0
	return entry, nil
}

// UpsertTeacher refreshes one mirrored directory entry.
func (s *Store) UpsertTeacher(ctx context.Context, entry persistence.DirectoryEntry) error {
	if entry.TeacherID == "" {
		return persistence.ErrConstraintViolation
	}

	var schoolID sql.NullString
	if entry.SchoolID != nil {
		schoolID = sql.NullString{String: *entry.SchoolID, Valid: true}
	}

	query := `INSERT INTO directory_teachers (teacher_id, school_id, exempt)
		VALUES (?, ?, ?)
		ON CONFLICT (teacher_id) DO UPDATE SET
			school_id = excluded.school_id,
			exempt = excluded.exempt`

	_, err := s.db.ExecContext(ctx, query, entry.TeacherID, schoolID, boolColumn(entry.Exempt))
	return mapError(err)
}
