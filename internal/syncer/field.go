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

// FieldSyncer synchronizes tea fields between the local store and the remote
// collection.
type FieldSyncer struct {
	store  *store.Store
	remote FieldRemote
	ids    model.IDAllocator
	logger *log.Logger
}

// NewFieldSyncer creates a field synchronizer.
//
// The store must be opened and have its schema initialized. If ids is nil a
// UUID allocator is used; if logger is nil a default stderr logger is used.
func NewFieldSyncer(st *store.Store, remote FieldRemote, ids model.IDAllocator, logger *log.Logger) *FieldSyncer {
	if ids == nil {
		ids = model.UUIDAllocator{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync:field] ", log.LstdFlags)
	}
	return &FieldSyncer{
		store:  st,
		remote: remote,
		ids:    ids,
		logger: logger,
	}
}

// Create allocates an identifier, commits the field locally as pending, and
// starts the remote push. The returned channel reports the push outcome.
func (s *FieldSyncer) Create(ctx context.Context, f *model.Field) (<-chan error, error) {
	now := time.Now().UTC()
	f.ID = s.ids.NewID()
	f.CreatedAt = now
	f.UpdatedAt = now
	f.SyncStatus = model.SyncPending

	if err := s.store.UpsertField(ctx, f); err != nil {
		return nil, err
	}

	return s.push(ctx, f), nil
}

// Update commits the modified field locally, resetting it to pending since
// the remote copy is now stale, and starts the remote push.
func (s *FieldSyncer) Update(ctx context.Context, f *model.Field) (<-chan error, error) {
	f.UpdatedAt = time.Now().UTC()
	f.SyncStatus = model.SyncPending

	if err := s.store.UpsertField(ctx, f); err != nil {
		return nil, err
	}

	return s.push(ctx, f), nil
}

// Delete removes the field locally - immediately and authoritatively - and
// fires a best-effort remote delete. A failed remote delete is logged only
// and never retried automatically; the outbox entry is the only durable
// trace of the delete.
func (s *FieldSyncer) Delete(ctx context.Context, id string) (<-chan error, error) {
	if err := s.store.DeleteField(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.AppendOutbox(ctx, "field", id, "delete", ""); err != nil {
		s.logger.Printf("Failed to record delete of field %s in outbox: %v", id, err)
	}

	return pushAsync(ctx, s.logger, "field", id, func(ctx context.Context) error {
		return s.remote.DeleteField(ctx, id)
	}), nil
}

// SyncPending pushes every pending field oldest-first, marking each synced on
// success. Per-record failures are logged and the sweep continues.
// Returns the number of fields confirmed synced.
func (s *FieldSyncer) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingFields(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending fields: %w", err)
	}

	synced := 0
	for _, f := range pending {
		if err := s.remote.UpsertField(ctx, f); err != nil {
			s.logger.Printf("Retry failed for field %s: %v", f.ID, err)
			continue
		}
		if err := s.store.MarkFieldSynced(ctx, f.ID); err != nil {
			return synced, err
		}
		synced++
	}

	if synced > 0 {
		s.logger.Printf("Synced %d of %d pending fields", synced, len(pending))
	}
	return synced, nil
}

// PullFromRemote backfills fields that exist remotely but not locally.
// Pulled records are trusted and marked synced immediately; records already
// present locally are never touched. Returns the number inserted.
func (s *FieldSyncer) PullFromRemote(ctx context.Context, plantationID string) (int, error) {
	remoteFields, err := s.remote.ListFields(ctx, plantationID)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote fields: %w", err)
	}

	inserted := 0
	for _, f := range remoteFields {
		exists, err := s.store.FieldExists(ctx, f.ID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		f.SyncStatus = model.SyncSynced
		if err := s.store.UpsertField(ctx, f); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Printf("Pulled %d new fields for plantation %s", inserted, plantationID)
	}
	return inserted, nil
}

// push starts the asynchronous remote write for one field.
func (s *FieldSyncer) push(ctx context.Context, f *model.Field) <-chan error {
	id := f.ID
	return pushAsync(ctx, s.logger, "field", id, func(ctx context.Context) error {
		if err := s.remote.UpsertField(ctx, f); err != nil {
			return err
		}
		return s.store.MarkFieldSynced(ctx, id)
	})
}
