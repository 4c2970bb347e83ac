// Package syncer provides the per-entity domain synchronizers.
//
// Every synchronizer follows the same local-first contract:
//
//   - Writes commit to the local store synchronously and return as soon as
//     the local transaction is durable. The caller is never blocked on the
//     network; a local write failure aborts the operation before any remote
//     side effect is attempted.
//   - The matching remote write runs asynchronously. Its outcome is reported
//     on a buffered completion channel that the caller may await or ignore.
//     On success the record is marked synced; on any failure the error is
//     logged and swallowed and the record stays pending for the next sweep.
//   - SyncPending retries every pending record oldest-first, so long-pending
//     records are never starved behind newer ones.
//   - PullFromRemote backfills records the device has never seen and marks
//     them synced immediately. Records that already exist locally are left
//     untouched: local wins once created, there is no field-level merge.
//   - Deletes are locally authoritative; the remote delete is fire-and-forget
//     and never retried automatically.
//
// Synchronizers are resilient per record: a malformed remote document or a
// single failed push never aborts the rest of a batch, and no entity's
// failure can block another entity's synchronization.
package syncer

import (
	"context"

	"github.com/plantationops/teasync/internal/model"
)

// FieldRemote is the slice of the remote adapter the field synchronizer needs.
type FieldRemote interface {
	UpsertField(ctx context.Context, f *model.Field) error
	DeleteField(ctx context.Context, id string) error
	ListFields(ctx context.Context, plantationID string) ([]*model.Field, error)
}

// WorkerRemote is the slice of the remote adapter the worker synchronizer needs.
type WorkerRemote interface {
	UpsertWorker(ctx context.Context, w *model.Worker) error
	DeleteWorker(ctx context.Context, id string) error
	ListWorkers(ctx context.Context, plantationID string) ([]*model.Worker, error)
}

// ScheduleRemote is the slice of the remote adapter the schedule synchronizer needs.
type ScheduleRemote interface {
	UpsertSchedule(ctx context.Context, s *model.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, plantationID string) ([]*model.Schedule, error)
}

// ActivityLogRemote is the slice of the remote adapter the activity log synchronizer needs.
type ActivityLogRemote interface {
	UpsertActivityLog(ctx context.Context, l *model.ActivityLog) error
	DeleteActivityLog(ctx context.Context, id string) error
	ListActivityLogs(ctx context.Context) ([]*model.ActivityLog, error)
}

// WeatherRemote is the slice of the remote adapter the weather pusher needs.
type WeatherRemote interface {
	PushWeather(ctx context.Context, item *model.WeatherQueueItem) error
}
