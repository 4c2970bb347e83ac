package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/plantationops/teasync/internal/model"
	"github.com/plantationops/teasync/internal/store"
)

// ActivityLogSyncer synchronizes field activity log entries. Logs are
// append-mostly: entries are recorded on the device as work happens and
// pushed out when connectivity allows.
type ActivityLogSyncer struct {
	store  *store.Store
	remote ActivityLogRemote
	ids    model.IDAllocator
	logger *log.Logger
}

// NewActivityLogSyncer creates an activity log synchronizer.
func NewActivityLogSyncer(st *store.Store, remote ActivityLogRemote, ids model.IDAllocator, logger *log.Logger) *ActivityLogSyncer {
	if ids == nil {
		ids = model.UUIDAllocator{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync:activity] ", log.LstdFlags)
	}
	return &ActivityLogSyncer{
		store:  st,
		remote: remote,
		ids:    ids,
		logger: logger,
	}
}

// Record commits a new log entry locally as pending and starts the remote
// push. A zero Timestamp is stamped with the current time.
func (s *ActivityLogSyncer) Record(ctx context.Context, entry *model.ActivityLog) (<-chan error, error) {
	now := time.Now().UTC()
	entry.ID = s.ids.NewID()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.SyncStatus = model.SyncPending

	if err := s.store.UpsertActivityLog(ctx, entry); err != nil {
		return nil, err
	}

	return s.push(ctx, entry), nil
}

// Update commits a corrected log entry locally, resetting it to pending, and
// starts the remote push.
func (s *ActivityLogSyncer) Update(ctx context.Context, entry *model.ActivityLog) (<-chan error, error) {
	entry.UpdatedAt = time.Now().UTC()
	entry.SyncStatus = model.SyncPending

	if err := s.store.UpsertActivityLog(ctx, entry); err != nil {
		return nil, err
	}

	return s.push(ctx, entry), nil
}

// Delete removes the entry locally, then fires a best-effort remote delete.
func (s *ActivityLogSyncer) Delete(ctx context.Context, id string) (<-chan error, error) {
	if err := s.store.DeleteActivityLog(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.AppendOutbox(ctx, "activity_log", id, "delete", ""); err != nil {
		s.logger.Printf("Failed to record delete of activity log %s in outbox: %v", id, err)
	}

	return pushAsync(ctx, s.logger, "activity log", id, func(ctx context.Context) error {
		return s.remote.DeleteActivityLog(ctx, id)
	}), nil
}

// SyncPending pushes every pending log entry oldest-first. Returns the
// number confirmed synced.
func (s *ActivityLogSyncer) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingActivityLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending activity logs: %w", err)
	}

	synced := 0
	for _, entry := range pending {
		if err := s.remote.UpsertActivityLog(ctx, entry); err != nil {
			s.logger.Printf("Retry failed for activity log %s: %v", entry.ID, err)
			continue
		}
		if err := s.store.MarkActivityLogSynced(ctx, entry.ID); err != nil {
			return synced, err
		}
		synced++
	}

	if synced > 0 {
		s.logger.Printf("Synced %d of %d pending activity logs", synced, len(pending))
	}
	return synced, nil
}

// PullFromRemote backfills log entries that exist remotely but not locally.
// Returns the number inserted.
func (s *ActivityLogSyncer) PullFromRemote(ctx context.Context) (int, error) {
	remoteLogs, err := s.remote.ListActivityLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote activity logs: %w", err)
	}

	inserted := 0
	for _, entry := range remoteLogs {
		exists, err := s.store.ActivityLogExists(ctx, entry.ID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		entry.SyncStatus = model.SyncSynced
		if err := s.store.UpsertActivityLog(ctx, entry); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Printf("Pulled %d new activity logs", inserted)
	}
	return inserted, nil
}

func (s *ActivityLogSyncer) push(ctx context.Context, entry *model.ActivityLog) <-chan error {
	id := entry.ID
	return pushAsync(ctx, s.logger, "activity log", id, func(ctx context.Context) error {
		if err := s.remote.UpsertActivityLog(ctx, entry); err != nil {
			return err
		}
		return s.store.MarkActivityLogSynced(ctx, id)
	})
}
