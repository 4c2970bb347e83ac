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

// WorkerSyncer synchronizes plantation workers between the local store and
// the remote collection.
type WorkerSyncer struct {
	store  *store.Store
	remote WorkerRemote
	ids    model.IDAllocator
	logger *log.Logger
}

// NewWorkerSyncer creates a worker synchronizer.
func NewWorkerSyncer(st *store.Store, remote WorkerRemote, ids model.IDAllocator, logger *log.Logger) *WorkerSyncer {
	if ids == nil {
		ids = model.UUIDAllocator{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync:worker] ", log.LstdFlags)
	}
	return &WorkerSyncer{
		store:  st,
		remote: remote,
		ids:    ids,
		logger: logger,
	}
}

// Create allocates an identifier, commits the worker locally as pending, and
// starts the remote push.
func (s *WorkerSyncer) Create(ctx context.Context, w *model.Worker) (<-chan error, error) {
	now := time.Now().UTC()
	w.ID = s.ids.NewID()
	w.CreatedAt = now
	w.UpdatedAt = now
	w.SyncStatus = model.SyncPending

	if err := s.store.UpsertWorker(ctx, w); err != nil {
		return nil, err
	}

	return s.push(ctx, w), nil
}

// Update commits the modified worker locally, resetting it to pending, and
// starts the remote push.
func (s *WorkerSyncer) Update(ctx context.Context, w *model.Worker) (<-chan error, error) {
	w.UpdatedAt = time.Now().UTC()
	w.SyncStatus = model.SyncPending

	if err := s.store.UpsertWorker(ctx, w); err != nil {
		return nil, err
	}

	return s.push(ctx, w), nil
}

// Delete removes the worker locally and fires a best-effort remote delete.
func (s *WorkerSyncer) Delete(ctx context.Context, id string) (<-chan error, error) {
	if err := s.store.DeleteWorker(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.AppendOutbox(ctx, "worker", id, "delete", ""); err != nil {
		s.logger.Printf("Failed to record delete of worker %s in outbox: %v", id, err)
	}

	return pushAsync(ctx, s.logger, "worker", id, func(ctx context.Context) error {
		return s.remote.DeleteWorker(ctx, id)
	}), nil
}

// SyncPending pushes every pending worker oldest-first.
// Returns the number of workers confirmed synced.
func (s *WorkerSyncer) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingWorkers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending workers: %w", err)
	}

	synced := 0
	for _, w := range pending {
		if err := s.remote.UpsertWorker(ctx, w); err != nil {
			s.logger.Printf("Retry failed for worker %s: %v", w.ID, err)
			continue
		}
		if err := s.store.MarkWorkerSynced(ctx, w.ID); err != nil {
			return synced, err
		}
		synced++
	}

	if synced > 0 {
		s.logger.Printf("Synced %d of %d pending workers", synced, len(pending))
	}
	return synced, nil
}

// PullFromRemote backfills workers that exist remotely but not locally.
// Returns the number inserted.
func (s *WorkerSyncer) PullFromRemote(ctx context.Context, plantationID string) (int, error) {
	remoteWorkers, err := s.remote.ListWorkers(ctx, plantationID)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote workers: %w", err)
	}

	inserted := 0
	for _, w := range remoteWorkers {
		exists, err := s.store.WorkerExists(ctx, w.ID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		w.SyncStatus = model.SyncSynced
		if err := s.store.UpsertWorker(ctx, w); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Printf("Pulled %d new workers for plantation %s", inserted, plantationID)
	}
	return inserted, nil
}

func (s *WorkerSyncer) push(ctx context.Context, w *model.Worker) <-chan error {
	id := w.ID
	return pushAsync(ctx, s.logger, "worker", id, func(ctx context.Context) error {
		if err := s.remote.UpsertWorker(ctx, w); err != nil {
			return err
		}
		return s.store.MarkWorkerSynced(ctx, id)
	})
}
