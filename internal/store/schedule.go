package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// SaveSchedule writes a schedule and its assignments as one atomic unit.
//
// Existing assignments for the schedule are replaced wholesale: the schedule
// owns its assignments, and partial assignment sets must never be observable.
// The whole write happens inside a single transaction.
func (s *Store) SaveSchedule(ctx context.Context, sched *model.Schedule) error {
	if err := sched.Validate(); err != nil {
		return &WriteError{Op: "save schedule", Err: err}
	}

	stmts := []Statement{
		{
			SQL: `
			INSERT INTO saved_schedules (
				id, plantation_id, date, total_workers, total_fields,
				average_efficiency, created_at, updated_at, status, sync_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				plantation_id = excluded.plantation_id,
				date = excluded.date,
				total_workers = excluded.total_workers,
				total_fields = excluded.total_fields,
				average_efficiency = excluded.average_efficiency,
				updated_at = excluded.updated_at,
				status = excluded.status,
				sync_status = excluded.sync_status
			`,
			Args: []interface{}{
				sched.ID,
				sched.PlantationID,
				sched.Date,
				sched.TotalWorkers,
				sched.TotalFields,
				sched.AverageEfficiency,
				sched.CreatedAt.Format(time.RFC3339),
				sched.UpdatedAt.Format(time.RFC3339),
				sched.Status,
				string(sched.SyncStatus),
			},
		},
		{
			SQL:  "DELETE FROM schedule_assignments WHERE schedule_id = ?",
			Args: []interface{}{sched.ID},
		},
	}

	for _, a := range sched.Assignments {
		stmts = append(stmts, Statement{
			SQL: `
			INSERT INTO schedule_assignments (
				id, schedule_id, worker_id, worker_name, field_id,
				field_name, predicted_efficiency, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			Args: []interface{}{
				a.ID,
				a.ScheduleID,
				a.WorkerID,
				a.WorkerName,
				a.FieldID,
				a.FieldName,
				a.PredictedEfficiency,
				a.Status,
			},
		})
	}

	return s.ExecuteTransaction(ctx, stmts)
}

// GetSchedule retrieves a schedule and its assignments by ID.
// Returns sql.ErrNoRows if the schedule is not found.
func (s *Store) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, plantation_id, date, total_workers, total_fields,
	       average_efficiency, created_at, updated_at, status, sync_status
	FROM saved_schedules
	WHERE id = ?
	`, id)

	sched, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}

	assignments, err := s.GetAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	sched.Assignments = assignments

	return sched, nil
}

// ScheduleExists reports whether a schedule with the given ID exists locally.
func (s *Store) ScheduleExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM saved_schedules WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check schedule existence: %w", err)
	}
	return n > 0, nil
}

// ListSchedules retrieves all schedules for a plantation, newest date first.
// Assignments are not loaded; use GetSchedule for a full read.
func (s *Store) ListSchedules(ctx context.Context, plantationID string) ([]*model.Schedule, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, plantation_id, date, total_workers, total_fields,
	       average_efficiency, created_at, updated_at, status, sync_status
	FROM saved_schedules
	WHERE plantation_id = ?
	ORDER BY date DESC
	`, plantationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// GetAssignments retrieves the assignments owned by a schedule.
func (s *Store) GetAssignments(ctx context.Context, scheduleID string) ([]*model.ScheduleAssignment, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, schedule_id, worker_id, worker_name, field_id,
	       field_name, predicted_efficiency, status
	FROM schedule_assignments
	WHERE schedule_id = ?
	ORDER BY worker_name ASC
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*model.ScheduleAssignment
	for rows.Next() {
		var a model.ScheduleAssignment
		var workerName, fieldID, fieldName sql.NullString

		err := rows.Scan(
			&a.ID,
			&a.ScheduleID,
			&a.WorkerID,
			&workerName,
			&fieldID,
			&fieldName,
			&a.PredictedEfficiency,
			&a.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}

		a.WorkerName = workerName.String
		a.FieldID = fieldID.String
		a.FieldName = fieldName.String

		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// PendingSchedules returns all schedules awaiting a confirmed remote write,
// oldest update first.
func (s *Store) PendingSchedules(ctx context.Context) ([]*model.Schedule, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, plantation_id, date, total_workers, total_fields,
	       average_efficiency, created_at, updated_at, status, sync_status
	FROM saved_schedules
	WHERE sync_status = 'pending'
	ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending schedules: %w", err)
	}
	defer rows.Close()

	scheds, err := scanSchedules(rows)
	if err != nil {
		return nil, err
	}

	for _, sched := range scheds {
		assignments, err := s.GetAssignments(ctx, sched.ID)
		if err != nil {
			return nil, err
		}
		sched.Assignments = assignments
	}

	return scheds, nil
}

// MarkScheduleSynced records that the remote copy of the schedule (including
// its assignments) is confirmed.
func (s *Store) MarkScheduleSynced(ctx context.Context, id string) error {
	return s.markSynced(ctx, "saved_schedules", id)
}

// DeleteSchedule removes a schedule and all of its assignments atomically.
//
// The assignment delete is explicit even though the foreign key cascades, so
// the invariant does not depend on the foreign_keys pragma being active.
// Returns nil if the schedule doesn't exist (idempotent).
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	return s.ExecuteTransaction(ctx, []Statement{
		{SQL: "DELETE FROM schedule_assignments WHERE schedule_id = ?", Args: []interface{}{id}},
		{SQL: "DELETE FROM saved_schedules WHERE id = ?", Args: []interface{}{id}},
	})
}

// CountPendingSchedules returns the number of schedules still awaiting remote confirmation.
func (s *Store) CountPendingSchedules(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM saved_schedules WHERE sync_status = 'pending'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending schedules: %w", err)
	}
	return n, nil
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var sched model.Schedule
	var createdAt, updatedAt, syncStatus string

	err := row.Scan(
		&sched.ID,
		&sched.PlantationID,
		&sched.Date,
		&sched.TotalWorkers,
		&sched.TotalFields,
		&sched.AverageEfficiency,
		&createdAt,
		&updatedAt,
		&sched.Status,
		&syncStatus,
	)
	if err != nil {
		return nil, err
	}

	sched.CreatedAt = parseTime(createdAt)
	sched.UpdatedAt = parseTime(updatedAt)
	sched.SyncStatus = model.SyncStatus(syncStatus)

	return &sched, nil
}

func scanSchedules(rows *sql.Rows) ([]*model.Schedule, error) {
	var scheds []*model.Schedule

	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		scheds = append(scheds, sched)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return scheds, nil
}
