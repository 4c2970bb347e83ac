package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// UpsertWorker inserts or updates a worker.
func (s *Store) UpsertWorker(ctx context.Context, w *model.Worker) error {
	if err := w.Validate(); err != nil {
		return &WriteError{Op: "upsert worker", Err: err}
	}

	query := `
	INSERT INTO workers (
		id, name, worker_id, birth_date, age, experience, gender,
		plantation_id, created_at, updated_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		worker_id = excluded.worker_id,
		birth_date = excluded.birth_date,
		age = excluded.age,
		experience = excluded.experience,
		gender = excluded.gender,
		plantation_id = excluded.plantation_id,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status
	`

	_, err := s.conn.ExecContext(ctx, query,
		w.ID,
		w.Name,
		w.WorkerID,
		w.BirthDate,
		w.Age,
		w.Experience,
		w.Gender,
		w.PlantationID,
		w.CreatedAt.Format(time.RFC3339),
		w.UpdatedAt.Format(time.RFC3339),
		string(w.SyncStatus),
	)
	if err != nil {
		return &WriteError{Op: "upsert worker", Err: err}
	}

	return nil
}

// GetWorker retrieves a single worker by ID.
// Returns sql.ErrNoRows if the worker is not found.
func (s *Store) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, name, worker_id, birth_date, age, experience, gender,
	       plantation_id, created_at, updated_at, sync_status
	FROM workers
	WHERE id = ?
	`, id)

	return scanWorker(row)
}

// WorkerExists reports whether a worker with the given ID exists locally.
func (s *Store) WorkerExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workers WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check worker existence: %w", err)
	}
	return n > 0, nil
}

// ListWorkers retrieves all workers for a plantation, newest first.
func (s *Store) ListWorkers(ctx context.Context, plantationID string) ([]*model.Worker, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, worker_id, birth_date, age, experience, gender,
	       plantation_id, created_at, updated_at, sync_status
	FROM workers
	WHERE plantation_id = ?
	ORDER BY created_at DESC
	`, plantationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	return scanWorkers(rows)
}

// PendingWorkers returns all workers awaiting a confirmed remote write,
// oldest update first.
func (s *Store) PendingWorkers(ctx context.Context) ([]*model.Worker, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, worker_id, birth_date, age, experience, gender,
	       plantation_id, created_at, updated_at, sync_status
	FROM workers
	WHERE sync_status = 'pending'
	ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending workers: %w", err)
	}
	defer rows.Close()

	return scanWorkers(rows)
}

// MarkWorkerSynced records that the remote copy of the worker is confirmed.
func (s *Store) MarkWorkerSynced(ctx context.Context, id string) error {
	return s.markSynced(ctx, "workers", id)
}

// DeleteWorker removes a worker from the local store.
// Returns nil if the worker doesn't exist (idempotent).
func (s *Store) DeleteWorker(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM workers WHERE id = ?", id); err != nil {
		return &WriteError{Op: "delete worker", Err: err}
	}
	return nil
}

// CountPendingWorkers returns the number of workers still awaiting remote confirmation.
func (s *Store) CountPendingWorkers(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workers WHERE sync_status = 'pending'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending workers: %w", err)
	}
	return n, nil
}

func scanWorker(row rowScanner) (*model.Worker, error) {
	var w model.Worker
	var workerID, birthDate, gender sql.NullString
	var createdAt, updatedAt, syncStatus string

	err := row.Scan(
		&w.ID,
		&w.Name,
		&workerID,
		&birthDate,
		&w.Age,
		&w.Experience,
		&gender,
		&w.PlantationID,
		&createdAt,
		&updatedAt,
		&syncStatus,
	)
	if err != nil {
		return nil, err
	}

	w.WorkerID = workerID.String
	w.BirthDate = birthDate.String
	w.Gender = gender.String
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	w.SyncStatus = model.SyncStatus(syncStatus)

	return &w, nil
}

func scanWorkers(rows *sql.Rows) ([]*model.Worker, error) {
	var workers []*model.Worker

	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workers: %w", err)
	}

	return workers, nil
}
