package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/plantationops/teasync/internal/model"
	"github.com/plantationops/teasync/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return st
}

// seqIDs allocates deterministic identifiers for tests
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

// fakeFieldRemote records calls and fails on demand
type fakeFieldRemote struct {
	mu      sync.Mutex
	err     error
	upserts []string
	deletes []string
	listing []*model.Field
}

func (f *fakeFieldRemote) UpsertField(ctx context.Context, fld *model.Field) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, fld.ID)
	return nil
}

func (f *fakeFieldRemote) DeleteField(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeFieldRemote) ListFields(ctx context.Context, plantationID string) ([]*model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeFieldRemote) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFieldRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func waitPush(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("push did not complete")
		return nil
	}
}

// TestFieldCreate_LocalFirst tests that a create is durable and pending
// before the remote push resolves
func TestFieldCreate_LocalFirst(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	f := &model.Field{Name: "North Slope", PlantationID: "plant-1", MaxWorkers: 8}

	done, err := s.Create(ctx, f)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if f.ID == "" {
		t.Fatal("Create() did not allocate an id")
	}

	// Local row exists regardless of the push outcome
	got, err := st.GetField(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.Name != "North Slope" {
		t.Errorf("Name = %q, want 'North Slope'", got.Name)
	}

	if err := waitPush(t, done); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	got, err = st.GetField(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.SyncStatus != model.SyncSynced {
		t.Errorf("SyncStatus = %q, want synced after confirmed push", got.SyncStatus)
	}
}

// TestFieldCreate_RemoteFailureStaysPending tests that a failed push leaves
// the record pending for the retry sweep
func TestFieldCreate_RemoteFailureStaysPending(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	remote.setErr(errors.New("connection refused"))
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	f := &model.Field{Name: "North Slope", PlantationID: "plant-1"}

	done, err := s.Create(ctx, f)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	pushErr := waitPush(t, done)
	if pushErr == nil {
		t.Fatal("push succeeded, want error")
	}
	var rwe *RemoteWriteError
	if !errors.As(pushErr, &rwe) {
		t.Errorf("push error = %T, want *RemoteWriteError", pushErr)
	}

	got, err := st.GetField(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.SyncStatus != model.SyncPending {
		t.Errorf("SyncStatus = %q, want pending after failed push", got.SyncStatus)
	}
}

// TestFieldCreate_LocalFailureSkipsRemote tests that a failed local write
// makes no remote call at all
func TestFieldCreate_LocalFailureSkipsRemote(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	// Closing the underlying connection forces the local commit to fail
	_ = st.RawDB().Close()

	ctx := context.Background()
	_, err := s.Create(ctx, &model.Field{Name: "North Slope", PlantationID: "plant-1"})
	if err == nil {
		t.Fatal("Create() succeeded on closed store")
	}
	var we *store.WriteError
	if !errors.As(err, &we) {
		t.Errorf("error = %T, want *store.WriteError", err)
	}
	if remote.upsertCount() != 0 {
		t.Errorf("remote upserts = %d, want 0", remote.upsertCount())
	}
}

// TestFieldSyncPending_UnreachableThenReachable tests the retry sweep across
// a connectivity transition
func TestFieldSyncPending_UnreachableThenReachable(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	remote.setErr(errors.New("unreachable"))
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		done, err := s.Create(ctx, &model.Field{Name: fmt.Sprintf("Block %d", i), PlantationID: "plant-1"})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		waitPush(t, done)
	}

	// Offline: the sweep confirms nothing and keeps all three pending
	synced, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending() failed: %v", err)
	}
	if synced != 0 {
		t.Errorf("synced = %d, want 0 while unreachable", synced)
	}

	remote.setErr(nil)

	synced, err = s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending() failed: %v", err)
	}
	if synced != 3 {
		t.Errorf("synced = %d, want 3 once reachable", synced)
	}

	count, err := st.CountPendingFields(ctx)
	if err != nil {
		t.Fatalf("CountPendingFields() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0", count)
	}
}

// TestFieldPullFromRemote_BackfillOnly tests that pull inserts unknown
// records and never overwrites local ones
func TestFieldPullFromRemote_BackfillOnly(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	now := time.Now().UTC()

	// Local copy with a deliberate difference from the remote listing
	local := &model.Field{
		ID: "shared", Name: "Local Name", PlantationID: "plant-1",
		CreatedAt: now, UpdatedAt: now, SyncStatus: model.SyncSynced,
	}
	if err := st.UpsertField(ctx, local); err != nil {
		t.Fatalf("UpsertField() failed: %v", err)
	}

	remote.listing = []*model.Field{
		{ID: "shared", Name: "Remote Name", PlantationID: "plant-1", CreatedAt: now, UpdatedAt: now},
		{ID: "remote-only", Name: "New Block", PlantationID: "plant-1", CreatedAt: now, UpdatedAt: now},
	}

	inserted, err := s.PullFromRemote(ctx, "plant-1")
	if err != nil {
		t.Fatalf("PullFromRemote() failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}

	got, err := st.GetField(ctx, "shared")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.Name != "Local Name" {
		t.Errorf("Name = %q, local copy was overwritten", got.Name)
	}

	pulled, err := st.GetField(ctx, "remote-only")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if pulled.SyncStatus != model.SyncSynced {
		t.Errorf("Pulled SyncStatus = %q, want synced", pulled.SyncStatus)
	}

	// A second pull inserts nothing
	inserted, err = s.PullFromRemote(ctx, "plant-1")
	if err != nil {
		t.Fatalf("Second PullFromRemote() failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second pull inserted = %d, want 0", inserted)
	}
}

// TestFieldDelete_LocalThenRemote tests local removal with best-effort
// remote propagation
func TestFieldDelete_LocalThenRemote(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	f := &model.Field{Name: "North Slope", PlantationID: "plant-1"}
	done, err := s.Create(ctx, f)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	waitPush(t, done)

	done, err = s.Delete(ctx, f.ID)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := waitPush(t, done); err != nil {
		t.Fatalf("remote delete failed: %v", err)
	}

	exists, err := st.FieldExists(ctx, f.ID)
	if err != nil {
		t.Fatalf("FieldExists() failed: %v", err)
	}
	if exists {
		t.Error("Field exists locally after delete")
	}
	remote.mu.Lock()
	deletes := len(remote.deletes)
	remote.mu.Unlock()
	if deletes != 1 {
		t.Errorf("remote deletes = %d, want 1", deletes)
	}
}

// TestFieldDelete_RecordsOutboxEntry tests that a delete leaves a durable
// trace in the outbox even though the remote delete is never retried
func TestFieldDelete_RecordsOutboxEntry(t *testing.T) {
	st := testStore(t)
	remote := &fakeFieldRemote{}
	s := NewFieldSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	f := &model.Field{Name: "North Slope", PlantationID: "plant-1"}
	done, err := s.Create(ctx, f)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	waitPush(t, done)

	stats, err := st.OutboxStats(ctx)
	if err != nil {
		t.Fatalf("OutboxStats() failed: %v", err)
	}
	if stats["pending"] != 0 {
		t.Fatalf("stats[pending] = %d before delete, want 0", stats["pending"])
	}

	done, err = s.Delete(ctx, f.ID)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	waitPush(t, done)

	stats, err = st.OutboxStats(ctx)
	if err != nil {
		t.Fatalf("OutboxStats() failed: %v", err)
	}
	if stats["pending"] != 1 {
		t.Errorf("stats[pending] = %d after delete, want 1", stats["pending"])
	}
}

// fakeScheduleRemote records schedule calls
type fakeScheduleRemote struct {
	mu      sync.Mutex
	err     error
	upserts []*model.Schedule
}

func (f *fakeScheduleRemote) UpsertSchedule(ctx context.Context, s *model.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, s)
	return nil
}

func (f *fakeScheduleRemote) DeleteSchedule(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeScheduleRemote) ListSchedules(ctx context.Context, plantationID string) ([]*model.Schedule, error) {
	return nil, nil
}

// TestScheduleCreate_DerivesAssignmentIDs tests deterministic assignment
// identifiers and the transactional local write
func TestScheduleCreate_DerivesAssignmentIDs(t *testing.T) {
	st := testStore(t)
	remote := &fakeScheduleRemote{}
	s := NewScheduleSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	sched := &model.Schedule{
		PlantationID: "plant-1",
		Date:         "2026-08-30",
		Assignments: []*model.ScheduleAssignment{
			{WorkerID: "w1", WorkerName: "Asha", FieldID: "f1"},
			{WorkerID: "w2", WorkerName: "Ravi", FieldID: "f2"},
		},
	}

	done, err := s.Create(ctx, sched)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	waitPush(t, done)

	for _, a := range sched.Assignments {
		want := sched.ID + "_" + a.WorkerID
		if a.ID != want {
			t.Errorf("assignment ID = %q, want %q", a.ID, want)
		}
		if a.ScheduleID != sched.ID {
			t.Errorf("assignment ScheduleID = %q, want %q", a.ScheduleID, sched.ID)
		}
	}

	got, err := st.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetSchedule() failed: %v", err)
	}
	if len(got.Assignments) != 2 {
		t.Errorf("len(Assignments) = %d, want 2", len(got.Assignments))
	}
}

// TestScheduleUpdate_SameWorkerSameID tests that re-saving a schedule with
// the same worker reuses the same assignment id
func TestScheduleUpdate_SameWorkerSameID(t *testing.T) {
	st := testStore(t)
	remote := &fakeScheduleRemote{}
	s := NewScheduleSyncer(st, remote, &seqIDs{}, nil)

	ctx := context.Background()
	sched := &model.Schedule{
		PlantationID: "plant-1",
		Date:         "2026-08-30",
		Assignments:  []*model.ScheduleAssignment{{WorkerID: "w1", FieldID: "f1"}},
	}
	done, err := s.Create(ctx, sched)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	waitPush(t, done)
	firstID := sched.Assignments[0].ID

	sched.Assignments[0].FieldID = "f2"
	done, err = s.Update(ctx, sched)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	waitPush(t, done)

	if sched.Assignments[0].ID != firstID {
		t.Errorf("assignment ID changed across update: %q vs %q", sched.Assignments[0].ID, firstID)
	}
}

// fakeActivityRemote fails every call
type fakeActivityRemote struct{}

func (fakeActivityRemote) UpsertActivityLog(ctx context.Context, l *model.ActivityLog) error {
	return errors.New("unreachable")
}
func (fakeActivityRemote) DeleteActivityLog(ctx context.Context, id string) error {
	return errors.New("unreachable")
}
func (fakeActivityRemote) ListActivityLogs(ctx context.Context) ([]*model.ActivityLog, error) {
	return nil, errors.New("unreachable")
}

// TestActivityRecord_OfflineStillSucceeds tests that recording works with no
// connectivity at all
func TestActivityRecord_OfflineStillSucceeds(t *testing.T) {
	st := testStore(t)
	s := NewActivityLogSyncer(st, fakeActivityRemote{}, &seqIDs{}, nil)

	ctx := context.Background()
	entry := &model.ActivityLog{OperationType: "irrigation", ZoneID: "zone-1", Status: "completed"}

	done, err := s.Record(ctx, entry)
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Record() did not stamp the timestamp")
	}

	if pushErr := waitPush(t, done); pushErr == nil {
		t.Fatal("push succeeded against unreachable remote")
	}

	count, err := st.CountPendingActivityLogs(ctx)
	if err != nil {
		t.Fatalf("CountPendingActivityLogs() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("pending = %d, want 1", count)
	}
}
