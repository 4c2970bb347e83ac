package store

import (
	"context"
	"fmt"
	"time"
)

// OutboxEntry is one row of the generic sync_queue table.
//
// The outbox is kept for operational inspection; the per-entity sync_status
// column is what drives retries. Nothing in the push path reads the outbox.
type OutboxEntry struct {
	ID         int64
	EntityType string
	EntityID   string
	Operation  string
	Data       string
	CreatedAt  time.Time
	SyncedAt   *time.Time
	Status     string
	Error      string
}

// AppendOutbox records an operation in the generic outbox.
func (s *Store) AppendOutbox(ctx context.Context, entityType, entityID, operation, data string) error {
	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO sync_queue (entity_type, entity_id, operation, data, created_at, status)
	VALUES (?, ?, ?, ?, ?, 'pending')
	`, entityType, entityID, operation, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &WriteError{Op: "append outbox", Err: err}
	}
	return nil
}

// OutboxStats returns row counts of the outbox by status.
func (s *Store) OutboxStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox stats: %w", err)
		}
		stats[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox stats: %w", err)
	}

	return stats, nil
}
