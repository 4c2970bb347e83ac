// Package remote provides the adapter to the cloud document store.
//
// Each entity lives in its own SurrealDB collection, and the document id is
// always the identifier allocated locally - local and remote primary keys are
// equal by construction, so no mapping table exists anywhere.
//
// The adapter connects lazily: constructing it never touches the network, so
// the application starts normally with no connectivity and every remote
// operation simply fails with ErrUnreachable until the backend comes back.
// All writes are idempotent overwrites of the document under the shared id,
// which is what makes concurrent pushes of the same record safe.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/plantationops/teasync/internal/model"
)

// ErrUnreachable indicates the remote backend could not be contacted.
// This is an expected steady state for an offline device, not a defect;
// callers route around it (offline queue, pending retry) rather than failing.
var ErrUnreachable = errors.New("remote backend unreachable")

// Config holds the connection settings for the document store.
type Config struct {
	// Endpoint is the SurrealDB RPC URL, e.g. "ws://sync.example.com:8000/rpc".
	Endpoint string

	// Namespace and Database select the tenant.
	Namespace string
	Database  string

	// Username and Password are optional root credentials.
	Username string
	Password string

	// Logger for adapter activity (default: stderr logger).
	Logger *log.Logger
}

// Adapter performs per-entity CRUD against the remote document collections.
type Adapter struct {
	cfg    Config
	logger *log.Logger

	mu sync.Mutex
	db *surrealdb.DB
}

// New creates an adapter. No connection is attempted until first use.
func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Adapter{
		cfg:    cfg,
		logger: logger,
	}
}

// Close releases the underlying connection if one was established.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close(ctx)
	a.db = nil
	return err
}

// conn returns the live connection, dialing on first use.
// Dial failures are reported as ErrUnreachable and the adapter stays usable;
// the next call simply tries again.
func (a *Adapter) conn(ctx context.Context) (*surrealdb.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return a.db, nil
	}

	db, err := surrealdb.FromEndpointURLString(ctx, a.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if a.cfg.Username != "" {
		token, err := db.SignIn(ctx, &surrealdb.Auth{
			Username: a.cfg.Username,
			Password: a.cfg.Password,
		})
		if err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to sign in to remote store: %w", err)
		}
		if err := db.Authenticate(ctx, token); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate to remote store: %w", err)
		}
	}

	if err := db.Use(ctx, a.cfg.Namespace, a.cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	a.logger.Printf("Connected to remote store at %s", a.cfg.Endpoint)
	a.db = db
	return db, nil
}

// dropConn discards a connection after an RPC failure so the next operation
// redials instead of reusing a dead socket.
func (a *Adapter) dropConn(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		_ = a.db.Close(ctx)
		a.db = nil
	}
}

// upsert overwrites the document under the shared identifier.
func upsert[T any](ctx context.Context, a *Adapter, collection, id string, doc T) error {
	db, err := a.conn(ctx)
	if err != nil {
		return err
	}

	if _, err := surrealdb.Upsert[T](ctx, db, models.NewRecordID(collection, id), doc); err != nil {
		a.dropConn(ctx)
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// remove deletes the document under the shared identifier. Idempotent.
func (a *Adapter) remove(ctx context.Context, collection, id string) error {
	db, err := a.conn(ctx)
	if err != nil {
		return err
	}

	if _, err := surrealdb.Delete[struct{}](ctx, db, models.NewRecordID(collection, id)); err != nil {
		a.dropConn(ctx)
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// listByOwner queries a collection filtered by an owner key column.
func listByOwner[T any](ctx context.Context, a *Adapter, collection, ownerField, ownerValue string) ([]T, error) {
	db, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $owner", collection, ownerField)
	results, err := surrealdb.Query[[]T](ctx, db, query, map[string]any{
		"owner": ownerValue,
	})
	if err != nil {
		a.dropConn(ctx)
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// UpsertField writes the field document under its local identifier.
func (a *Adapter) UpsertField(ctx context.Context, f *model.Field) error {
	return upsert(ctx, a, CollectionFields, f.ID, fieldToDoc(f))
}

// DeleteField removes the field document. Idempotent.
func (a *Adapter) DeleteField(ctx context.Context, id string) error {
	return a.remove(ctx, CollectionFields, id)
}

// ListFields returns the plantation's field documents. Malformed documents
// are skipped with a log line; they never abort the batch.
func (a *Adapter) ListFields(ctx context.Context, plantationID string) ([]*model.Field, error) {
	docs, err := listByOwner[fieldDoc](ctx, a, CollectionFields, "plantationId", plantationID)
	if err != nil {
		return nil, err
	}

	var fields []*model.Field
	for _, d := range docs {
		f, err := docToField(d)
		if err != nil {
			a.logger.Printf("Skipping %v", err)
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// UpsertWorker writes the worker document under its local identifier.
func (a *Adapter) UpsertWorker(ctx context.Context, w *model.Worker) error {
	return upsert(ctx, a, CollectionWorkers, w.ID, workerToDoc(w))
}

// DeleteWorker removes the worker document. Idempotent.
func (a *Adapter) DeleteWorker(ctx context.Context, id string) error {
	return a.remove(ctx, CollectionWorkers, id)
}

// ListWorkers returns the plantation's worker documents, skipping malformed ones.
func (a *Adapter) ListWorkers(ctx context.Context, plantationID string) ([]*model.Worker, error) {
	docs, err := listByOwner[workerDoc](ctx, a, CollectionWorkers, "plantationId", plantationID)
	if err != nil {
		return nil, err
	}

	var workers []*model.Worker
	for _, d := range docs {
		w, err := docToWorker(d)
		if err != nil {
			a.logger.Printf("Skipping %v", err)
			continue
		}
		workers = append(workers, w)
	}
	return workers, nil
}

// UpsertSchedule writes the schedule document and one document per
// assignment, all keyed by their local identifiers.
func (a *Adapter) UpsertSchedule(ctx context.Context, s *model.Schedule) error {
	if err := upsert(ctx, a, CollectionSchedules, s.ID, scheduleToDoc(s)); err != nil {
		return err
	}
	for _, assignment := range s.Assignments {
		if err := upsert(ctx, a, CollectionAssignments, assignment.ID, assignmentToDoc(assignment)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSchedule removes the schedule document and its assignment documents.
// Idempotent.
func (a *Adapter) DeleteSchedule(ctx context.Context, id string) error {
	db, err := a.conn(ctx)
	if err != nil {
		return err
	}

	// Assignments first so a partial failure leaves no orphans remotely
	query := fmt.Sprintf("DELETE %s WHERE scheduleId = $schedule", CollectionAssignments)
	if _, err := surrealdb.Query[any](ctx, db, query, map[string]any{
		"schedule": id,
	}); err != nil {
		a.dropConn(ctx)
		return fmt.Errorf("failed to delete assignments for schedule %s: %w", id, err)
	}

	return a.remove(ctx, CollectionSchedules, id)
}

// ListSchedules returns the plantation's schedule documents with their
// assignments, skipping malformed ones.
func (a *Adapter) ListSchedules(ctx context.Context, plantationID string) ([]*model.Schedule, error) {
	docs, err := listByOwner[scheduleDoc](ctx, a, CollectionSchedules, "plantationId", plantationID)
	if err != nil {
		return nil, err
	}

	var schedules []*model.Schedule
	for _, d := range docs {
		s, err := docToSchedule(d)
		if err != nil {
			a.logger.Printf("Skipping %v", err)
			continue
		}

		assignmentDocs, err := listByOwner[assignmentDoc](ctx, a, CollectionAssignments, "scheduleId", s.ID)
		if err != nil {
			return nil, err
		}
		for _, ad := range assignmentDocs {
			assignment, err := docToAssignment(ad)
			if err != nil {
				a.logger.Printf("Skipping %v", err)
				continue
			}
			s.Assignments = append(s.Assignments, assignment)
		}

		schedules = append(schedules, s)
	}
	return schedules, nil
}

// UpsertActivityLog writes the activity log document under its local identifier.
func (a *Adapter) UpsertActivityLog(ctx context.Context, l *model.ActivityLog) error {
	return upsert(ctx, a, CollectionActivityLog, l.ID, activityLogToDoc(l))
}

// DeleteActivityLog removes the activity log document. Idempotent.
func (a *Adapter) DeleteActivityLog(ctx context.Context, id string) error {
	return a.remove(ctx, CollectionActivityLog, id)
}

// ListActivityLogs returns all activity log documents, skipping malformed ones.
// Activity logs carry no plantation key; the collection is device-scoped.
func (a *Adapter) ListActivityLogs(ctx context.Context) ([]*model.ActivityLog, error) {
	db, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}

	results, err := surrealdb.Query[[]activityLogDoc](ctx, db,
		fmt.Sprintf("SELECT * FROM %s", CollectionActivityLog), nil)
	if err != nil {
		a.dropConn(ctx)
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}

	var logs []*model.ActivityLog
	if results != nil && len(*results) > 0 {
		for _, d := range (*results)[0].Result {
			l, err := docToActivityLog(d)
			if err != nil {
				a.logger.Printf("Skipping %v", err)
				continue
			}
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// PushWeather writes a weather reading under its queue item identifier.
// Re-pushing the same item overwrites the same document, so a drain racing a
// direct push converges on identical remote state.
func (a *Adapter) PushWeather(ctx context.Context, item *model.WeatherQueueItem) error {
	return upsert(ctx, a, CollectionWeather, item.ID, weatherToDoc(item))
}
