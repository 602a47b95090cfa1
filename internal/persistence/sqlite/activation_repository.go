package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

const activationColumns = `id, kind, activator_id, duration_type, start_date, end_date,
	status, origin, created_at, updated_at`

// CreateActivation inserts a new grant. Grants are append-only; overlapping
// records for the same activator are expected and resolved at read time.
func (s *Store) CreateActivation(ctx context.Context, record persistence.ActivationRecord) error {
	if record.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO activations (` + activationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Kind,
		record.ActivatorID,
		record.DurationType,
		formatTime(record.StartDate),
		formatTime(record.EndDate),
		record.Status,
		record.Origin,
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	return mapError(err)
}

// GetActivation loads one grant by id.
func (s *Store) GetActivation(ctx context.Context, id string) (persistence.ActivationRecord, error) {
	query := `SELECT ` + activationColumns + ` FROM activations WHERE id = ?`
	return scanActivation(s.db.QueryRowContext(ctx, query, id))
}

// ListCurrent returns non-cancelled grants of the given kind and activator
// whose date range covers now. Records the expiry sweep has not caught up
// with yet still qualify through their dates.
func (s *Store) ListCurrent(ctx context.Context, kind, activatorID string, now time.Time) ([]persistence.ActivationRecord, error) {
	query := `SELECT ` + activationColumns + ` FROM activations
		WHERE kind = ? AND activator_id = ? AND status != ?
			AND start_date <= ? AND end_date >= ?
		ORDER BY start_date DESC, end_date DESC, id DESC`

	instant := formatTime(now)
	rows, err := s.db.QueryContext(ctx, query, kind, activatorID, "cancelled", instant, instant)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	records := make([]persistence.ActivationRecord, 0)
	for rows.Next() {
		record, err := scanActivation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, mapError(rows.Err())
}

// CancelActivation revokes a grant regardless of its dates.
func (s *Store) CancelActivation(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE activations SET status = ?, updated_at = ? WHERE id = ?`,
		"cancelled", formatTime(at), id,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// MarkExpired flips active grants whose end date passed to expired.
// Running it twice over the same instant changes nothing the second time.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE activations SET status = ?, updated_at = ? WHERE status = ? AND end_date < ?`,
		"expired", formatTime(now), "active", formatTime(now),
	)
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return affected, nil
}

func scanActivation(row rowScanner) (persistence.ActivationRecord, error) {
	var (
		record    persistence.ActivationRecord
		startDate string
		endDate   string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.ActivatorID,
		&record.DurationType,
		&startDate,
		&endDate,
		&record.Status,
		&record.Origin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ActivationRecord{}, mapError(err)
	}

	if record.StartDate, err = parseTime(startDate); err != nil {
		return persistence.ActivationRecord{}, fmt.Errorf("sqlite: activation %s start date: %w", record.ID, err)
	}
	if record.EndDate, err = parseTime(endDate); err != nil {
		return persistence.ActivationRecord{}, fmt.Errorf("sqlite: activation %s end date: %w", record.ID, err)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ActivationRecord{}, fmt.Errorf("sqlite: activation %s created at: %w", record.ID, err)
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ActivationRecord{}, fmt.Errorf("sqlite: activation %s updated at: %w", record.ID, err)
	}
	return record, nil
}
