package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// UpsertField inserts or updates a field.
//
// If a field with the same ID exists, it is updated in place. The caller is
// responsible for the sync_status value: local mutations write 'pending',
// pull-merge backfills write 'synced'.
func (s *Store) UpsertField(ctx context.Context, f *model.Field) error {
	if err := f.Validate(); err != nil {
		return &WriteError{Op: "upsert field", Err: err}
	}

	query := `
	INSERT INTO fields (
		id, name, slope, max_workers, location, plantation_id,
		created_at, updated_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		slope = excluded.slope,
		max_workers = excluded.max_workers,
		location = excluded.location,
		plantation_id = excluded.plantation_id,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status
	`

	_, err := s.conn.ExecContext(ctx, query,
		f.ID,
		f.Name,
		f.Slope,
		f.MaxWorkers,
		f.Location,
		f.PlantationID,
		f.CreatedAt.Format(time.RFC3339),
		f.UpdatedAt.Format(time.RFC3339),
		string(f.SyncStatus),
	)
	if err != nil {
		return &WriteError{Op: "upsert field", Err: err}
	}

	return nil
}

// GetField retrieves a single field by ID.
// Returns sql.ErrNoRows if the field is not found.
func (s *Store) GetField(ctx context.Context, id string) (*model.Field, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, name, slope, max_workers, location, plantation_id,
	       created_at, updated_at, sync_status
	FROM fields
	WHERE id = ?
	`, id)

	return scanField(row)
}

// FieldExists reports whether a field with the given ID exists locally.
func (s *Store) FieldExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fields WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check field existence: %w", err)
	}
	return n > 0, nil
}

// ListFields retrieves all fields for a plantation, newest first.
func (s *Store) ListFields(ctx context.Context, plantationID string) ([]*model.Field, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, slope, max_workers, location, plantation_id,
	       created_at, updated_at, sync_status
	FROM fields
	WHERE plantation_id = ?
	ORDER BY created_at DESC
	`, plantationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	return scanFields(rows)
}

// PendingFields returns all fields awaiting a confirmed remote write,
// ordered by updated_at ascending so long-pending records are retried first.
func (s *Store) PendingFields(ctx context.Context) ([]*model.Field, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, slope, max_workers, location, plantation_id,
	       created_at, updated_at, sync_status
	FROM fields
	WHERE sync_status = 'pending'
	ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending fields: %w", err)
	}
	defer rows.Close()

	return scanFields(rows)
}

// MarkFieldSynced records that the remote copy of the field is confirmed.
func (s *Store) MarkFieldSynced(ctx context.Context, id string) error {
	return s.markSynced(ctx, "fields", id)
}

// DeleteField removes a field from the local store.
// Returns nil if the field doesn't exist (idempotent).
func (s *Store) DeleteField(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", id); err != nil {
		return &WriteError{Op: "delete field", Err: err}
	}
	return nil
}

// CountPendingFields returns the number of fields still awaiting remote confirmation.
func (s *Store) CountPendingFields(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fields WHERE sync_status = 'pending'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending fields: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanField(row rowScanner) (*model.Field, error) {
	var f model.Field
	var location sql.NullString
	var createdAt, updatedAt, syncStatus string

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Slope,
		&f.MaxWorkers,
		&location,
		&f.PlantationID,
		&createdAt,
		&updatedAt,
		&syncStatus,
	)
	if err != nil {
		return nil, err
	}

	f.Location = location.String
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	f.SyncStatus = model.SyncStatus(syncStatus)

	return &f, nil
}

func scanFields(rows *sql.Rows) ([]*model.Field, error) {
	var fields []*model.Field

	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return fields, nil
}
