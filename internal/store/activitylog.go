package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// UpsertActivityLog inserts or updates an activity log entry.
func (s *Store) UpsertActivityLog(ctx context.Context, l *model.ActivityLog) error {
	if err := l.Validate(); err != nil {
		return &WriteError{Op: "upsert activity log", Err: err}
	}

	query := `
	INSERT INTO activity_logs (
		id, timestamp, operation_type, zone_id, status, duration,
		pressure, flow_rate, water_volume, fertilizer_volume,
		start_moisture, end_moisture, notes, sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		timestamp = excluded.timestamp,
		operation_type = excluded.operation_type,
		zone_id = excluded.zone_id,
		status = excluded.status,
		duration = excluded.duration,
		pressure = excluded.pressure,
		flow_rate = excluded.flow_rate,
		water_volume = excluded.water_volume,
		fertilizer_volume = excluded.fertilizer_volume,
		start_moisture = excluded.start_moisture,
		end_moisture = excluded.end_moisture,
		notes = excluded.notes,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		l.ID,
		l.Timestamp.Format(time.RFC3339),
		l.OperationType,
		l.ZoneID,
		l.Status,
		l.Duration,
		l.Pressure,
		l.FlowRate,
		l.WaterVolume,
		l.FertilizerVolume,
		l.StartMoisture,
		l.EndMoisture,
		l.Notes,
		string(l.SyncStatus),
		l.CreatedAt.Format(time.RFC3339),
		l.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &WriteError{Op: "upsert activity log", Err: err}
	}

	return nil
}

// GetActivityLog retrieves a single log entry by ID.
// Returns sql.ErrNoRows if the entry is not found.
func (s *Store) GetActivityLog(ctx context.Context, id string) (*model.ActivityLog, error) {
	row := s.conn.QueryRowContext(ctx, activityLogSelect+" WHERE id = ?", id)
	return scanActivityLog(row)
}

// ActivityLogExists reports whether a log entry with the given ID exists locally.
func (s *Store) ActivityLogExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_logs WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check activity log existence: %w", err)
	}
	return n > 0, nil
}

// RecentActivityLogs returns the most recent limit entries, newest first.
// Served by the descending timestamp index.
func (s *Store) RecentActivityLogs(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	rows, err := s.conn.QueryContext(ctx,
		activityLogSelect+" ORDER BY timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity logs: %w", err)
	}
	defer rows.Close()

	return scanActivityLogs(rows)
}

// PendingActivityLogs returns all entries awaiting a confirmed remote write,
// oldest update first. Served by the sync_status index.
func (s *Store) PendingActivityLogs(ctx context.Context) ([]*model.ActivityLog, error) {
	rows, err := s.conn.QueryContext(ctx,
		activityLogSelect+" WHERE sync_status = 'pending' ORDER BY updated_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending activity logs: %w", err)
	}
	defer rows.Close()

	return scanActivityLogs(rows)
}

// MarkActivityLogSynced records that the remote copy of the entry is confirmed.
func (s *Store) MarkActivityLogSynced(ctx context.Context, id string) error {
	return s.markSynced(ctx, "activity_logs", id)
}

// DeleteActivityLog removes a log entry from the local store.
// Returns nil if the entry doesn't exist (idempotent).
func (s *Store) DeleteActivityLog(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM activity_logs WHERE id = ?", id); err != nil {
		return &WriteError{Op: "delete activity log", Err: err}
	}
	return nil
}

// CountPendingActivityLogs returns the number of entries still awaiting remote confirmation.
func (s *Store) CountPendingActivityLogs(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_logs WHERE sync_status = 'pending'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending activity logs: %w", err)
	}
	return n, nil
}

const activityLogSelect = `
	SELECT id, timestamp, operation_type, zone_id, status, duration,
	       pressure, flow_rate, water_volume, fertilizer_volume,
	       start_moisture, end_moisture, notes, sync_status, created_at, updated_at
	FROM activity_logs`

func scanActivityLog(row rowScanner) (*model.ActivityLog, error) {
	var l model.ActivityLog
	var zoneID, status, notes sql.NullString
	var timestamp, createdAt, updatedAt, syncStatus string

	err := row.Scan(
		&l.ID,
		&timestamp,
		&l.OperationType,
		&zoneID,
		&status,
		&l.Duration,
		&l.Pressure,
		&l.FlowRate,
		&l.WaterVolume,
		&l.FertilizerVolume,
		&l.StartMoisture,
		&l.EndMoisture,
		&notes,
		&syncStatus,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.ZoneID = zoneID.String
	l.Status = status.String
	l.Notes = notes.String
	l.Timestamp = parseTime(timestamp)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	l.SyncStatus = model.SyncStatus(syncStatus)

	return &l, nil
}

func scanActivityLogs(rows *sql.Rows) ([]*model.ActivityLog, error) {
	var logs []*model.ActivityLog

	for rows.Next() {
		l, err := scanActivityLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity logs: %w", err)
	}

	return logs, nil
}
