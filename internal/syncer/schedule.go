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

// ScheduleSyncer synchronizes saved schedules, together with their
// assignments, between the local store and the remote collections.
//
// A schedule and its assignments always move as one unit: the local write is
// a single transaction, the remote push writes the schedule document plus one
// assignment document each, and a delete removes all of them. Assignment
// identifiers are derived from (scheduleID, workerID), so re-pushing a
// schedule overwrites the same remote documents.
type ScheduleSyncer struct {
	store  *store.Store
	remote ScheduleRemote
	ids    model.IDAllocator
	logger *log.Logger
}

// NewScheduleSyncer creates a schedule synchronizer.
func NewScheduleSyncer(st *store.Store, remote ScheduleRemote, ids model.IDAllocator, logger *log.Logger) *ScheduleSyncer {
	if ids == nil {
		ids = model.UUIDAllocator{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync:schedule] ", log.LstdFlags)
	}
	return &ScheduleSyncer{
		store:  st,
		remote: remote,
		ids:    ids,
		logger: logger,
	}
}

// Create allocates identifiers for the schedule and its assignments, commits
// everything locally in one transaction as pending, and starts the remote
// push.
func (s *ScheduleSyncer) Create(ctx context.Context, sched *model.Schedule) (<-chan error, error) {
	now := time.Now().UTC()
	sched.ID = s.ids.NewID()
	sched.CreatedAt = now
	sched.UpdatedAt = now
	sched.SyncStatus = model.SyncPending
	if sched.Status == "" {
		sched.Status = "active"
	}

	s.assignIdentifiers(sched)

	if err := s.store.SaveSchedule(ctx, sched); err != nil {
		return nil, err
	}

	return s.push(ctx, sched), nil
}

// Update commits the modified schedule and its replacement assignment set in
// one transaction, resetting it to pending, and starts the remote push.
func (s *ScheduleSyncer) Update(ctx context.Context, sched *model.Schedule) (<-chan error, error) {
	sched.UpdatedAt = time.Now().UTC()
	sched.SyncStatus = model.SyncPending

	s.assignIdentifiers(sched)

	if err := s.store.SaveSchedule(ctx, sched); err != nil {
		return nil, err
	}

	return s.push(ctx, sched), nil
}

// Delete removes the schedule and all of its assignments in one local
// transaction, then fires a best-effort remote delete covering both
// collections.
func (s *ScheduleSyncer) Delete(ctx context.Context, id string) (<-chan error, error) {
	if err := s.store.DeleteSchedule(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.AppendOutbox(ctx, "schedule", id, "delete", ""); err != nil {
		s.logger.Printf("Failed to record delete of schedule %s in outbox: %v", id, err)
	}

	return pushAsync(ctx, s.logger, "schedule", id, func(ctx context.Context) error {
		return s.remote.DeleteSchedule(ctx, id)
	}), nil
}

// SyncPending pushes every pending schedule oldest-first, assignments
// included. Returns the number of schedules confirmed synced.
func (s *ScheduleSyncer) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending schedules: %w", err)
	}

	synced := 0
	for _, sched := range pending {
		if err := s.remote.UpsertSchedule(ctx, sched); err != nil {
			s.logger.Printf("Retry failed for schedule %s: %v", sched.ID, err)
			continue
		}
		if err := s.store.MarkScheduleSynced(ctx, sched.ID); err != nil {
			return synced, err
		}
		synced++
	}

	if synced > 0 {
		s.logger.Printf("Synced %d of %d pending schedules", synced, len(pending))
	}
	return synced, nil
}

// PullFromRemote backfills schedules that exist remotely but not locally,
// assignments included. Returns the number inserted.
func (s *ScheduleSyncer) PullFromRemote(ctx context.Context, plantationID string) (int, error) {
	remoteSchedules, err := s.remote.ListSchedules(ctx, plantationID)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote schedules: %w", err)
	}

	inserted := 0
	for _, sched := range remoteSchedules {
		exists, err := s.store.ScheduleExists(ctx, sched.ID)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}

		sched.SyncStatus = model.SyncSynced
		if err := s.store.SaveSchedule(ctx, sched); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Printf("Pulled %d new schedules for plantation %s", inserted, plantationID)
	}
	return inserted, nil
}

// assignIdentifiers fills in derived assignment identifiers and parent links.
func (s *ScheduleSyncer) assignIdentifiers(sched *model.Schedule) {
	for _, a := range sched.Assignments {
		a.ScheduleID = sched.ID
		a.ID = model.AssignmentID(sched.ID, a.WorkerID)
		if a.Status == "" {
			a.Status = "assigned"
		}
	}
}

func (s *ScheduleSyncer) push(ctx context.Context, sched *model.Schedule) <-chan error {
	id := sched.ID
	return pushAsync(ctx, s.logger, "schedule", id, func(ctx context.Context) error {
		if err := s.remote.UpsertSchedule(ctx, sched); err != nil {
			return err
		}
		return s.store.MarkScheduleSynced(ctx, id)
	})
}
