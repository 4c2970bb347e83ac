package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// testStore opens an initialized store in a temporary directory
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return st
}

func testField(id string, updatedAt time.Time) *model.Field {
	return &model.Field{
		ID:           id,
		Name:         "North Slope " + id,
		Slope:        12.5,
		MaxWorkers:   8,
		Location:     "section A",
		PlantationID: "plant-1",
		CreatedAt:    updatedAt,
		UpdatedAt:    updatedAt,
		SyncStatus:   model.SyncPending,
	}
}

// TestOpen_Success tests database creation and initialization
func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
}

// TestInitSchema_Success tests that every table is created
func TestInitSchema_Success(t *testing.T) {
	st := testStore(t)

	tables := []string{"fields", "workers", "saved_schedules", "schedule_assignments", "activity_logs", "sync_queue"}
	for _, table := range tables {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := st.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

// TestInitSchema_Idempotent tests that schema initialization is repeatable
func TestInitSchema_Idempotent(t *testing.T) {
	st := testStore(t)

	if err := st.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

// TestUpsertField_Insert tests inserting a new field
func TestUpsertField_Insert(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	f := testField("field-1", time.Now().UTC())
	if err := st.UpsertField(ctx, f); err != nil {
		t.Fatalf("UpsertField() failed: %v", err)
	}

	got, err := st.GetField(ctx, "field-1")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.Name != f.Name {
		t.Errorf("Name = %q, want %q", got.Name, f.Name)
	}
	if got.SyncStatus != model.SyncPending {
		t.Errorf("SyncStatus = %q, want pending", got.SyncStatus)
	}
}

// TestUpsertField_Update tests that a second upsert overwrites in place
func TestUpsertField_Update(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	f := testField("field-1", time.Now().UTC())
	if err := st.UpsertField(ctx, f); err != nil {
		t.Fatalf("UpsertField() failed: %v", err)
	}

	f.Name = "Renamed Block"
	f.MaxWorkers = 12
	if err := st.UpsertField(ctx, f); err != nil {
		t.Fatalf("Second UpsertField() failed: %v", err)
	}

	got, err := st.GetField(ctx, "field-1")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.Name != "Renamed Block" {
		t.Errorf("Name = %q, want 'Renamed Block'", got.Name)
	}
	if got.MaxWorkers != 12 {
		t.Errorf("MaxWorkers = %d, want 12", got.MaxWorkers)
	}

	var count int
	if err := st.conn.QueryRow(`SELECT COUNT(*) FROM fields`).Scan(&count); err != nil {
		t.Fatalf("Failed to count fields: %v", err)
	}
	if count != 1 {
		t.Errorf("Row count = %d, want 1", count)
	}
}

// TestPendingFields_OldestFirst tests retry sweep ordering
func TestPendingFields_OldestFirst(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"field-c", "field-a", "field-b"} {
		f := testField(id, base.Add(time.Duration(2-i)*time.Hour))
		if err := st.UpsertField(ctx, f); err != nil {
			t.Fatalf("UpsertField(%s) failed: %v", id, err)
		}
	}

	pending, err := st.PendingFields(ctx)
	if err != nil {
		t.Fatalf("PendingFields() failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len(pending) = %d, want 3", len(pending))
	}

	want := []string{"field-b", "field-a", "field-c"}
	for i, f := range pending {
		if f.ID != want[i] {
			t.Errorf("pending[%d].ID = %q, want %q", i, f.ID, want[i])
		}
	}
}

// TestMarkFieldSynced tests the pending to synced transition
func TestMarkFieldSynced(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	f := testField("field-1", time.Now().UTC())
	if err := st.UpsertField(ctx, f); err != nil {
		t.Fatalf("UpsertField() failed: %v", err)
	}

	if err := st.MarkFieldSynced(ctx, "field-1"); err != nil {
		t.Fatalf("MarkFieldSynced() failed: %v", err)
	}

	got, err := st.GetField(ctx, "field-1")
	if err != nil {
		t.Fatalf("GetField() failed: %v", err)
	}
	if got.SyncStatus != model.SyncSynced {
		t.Errorf("SyncStatus = %q, want synced", got.SyncStatus)
	}

	pending, err := st.PendingFields(ctx)
	if err != nil {
		t.Fatalf("PendingFields() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d, want 0", len(pending))
	}
}

// TestDeleteField_Idempotent tests that deleting a missing field succeeds
func TestDeleteField_Idempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.DeleteField(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteField() on missing id failed: %v", err)
	}
}

// TestCountPendingFields tests the pending counter
func TestCountPendingFields(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"f1", "f2", "f3"} {
		if err := st.UpsertField(ctx, testField(id, now)); err != nil {
			t.Fatalf("UpsertField(%s) failed: %v", id, err)
		}
	}
	if err := st.MarkFieldSynced(ctx, "f2"); err != nil {
		t.Fatalf("MarkFieldSynced() failed: %v", err)
	}

	count, err := st.CountPendingFields(ctx)
	if err != nil {
		t.Fatalf("CountPendingFields() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

// TestSaveSchedule_WithAssignments tests the transactional schedule write
func TestSaveSchedule_WithAssignments(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sched := &model.Schedule{
		ID:           "sched-1",
		PlantationID: "plant-1",
		Date:         "2026-08-30",
		TotalWorkers: 2,
		TotalFields:  1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Status:       "active",
		SyncStatus:   model.SyncPending,
		Assignments: []*model.ScheduleAssignment{
			{ID: "sched-1_w1", ScheduleID: "sched-1", WorkerID: "w1", WorkerName: "Asha", FieldID: "f1", FieldName: "North", PredictedEfficiency: 0.82, Status: "assigned"},
			{ID: "sched-1_w2", ScheduleID: "sched-1", WorkerID: "w2", WorkerName: "Ravi", FieldID: "f1", FieldName: "North", PredictedEfficiency: 0.77, Status: "assigned"},
		},
	}

	if err := st.SaveSchedule(ctx, sched); err != nil {
		t.Fatalf("SaveSchedule() failed: %v", err)
	}

	got, err := st.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("GetSchedule() failed: %v", err)
	}
	if len(got.Assignments) != 2 {
		t.Fatalf("len(Assignments) = %d, want 2", len(got.Assignments))
	}
}

// TestSaveSchedule_ReplacesAssignments tests that a re-save replaces the
// assignment set instead of accumulating rows
func TestSaveSchedule_ReplacesAssignments(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sched := &model.Schedule{
		ID:           "sched-1",
		PlantationID: "plant-1",
		Date:         "2026-08-30",
		CreatedAt:    now,
		UpdatedAt:    now,
		Status:       "active",
		SyncStatus:   model.SyncPending,
		Assignments: []*model.ScheduleAssignment{
			{ID: "sched-1_w1", ScheduleID: "sched-1", WorkerID: "w1", FieldID: "f1", Status: "assigned"},
			{ID: "sched-1_w2", ScheduleID: "sched-1", WorkerID: "w2", FieldID: "f1", Status: "assigned"},
		},
	}
	if err := st.SaveSchedule(ctx, sched); err != nil {
		t.Fatalf("SaveSchedule() failed: %v", err)
	}

	sched.Assignments = sched.Assignments[:1]
	if err := st.SaveSchedule(ctx, sched); err != nil {
		t.Fatalf("Second SaveSchedule() failed: %v", err)
	}

	got, err := st.GetAssignments(ctx, "sched-1")
	if err != nil {
		t.Fatalf("GetAssignments() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(assignments) = %d, want 1", len(got))
	}
}

// TestDeleteSchedule_RemovesAssignments tests that a delete takes the
// assignment rows with it
func TestDeleteSchedule_RemovesAssignments(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sched := &model.Schedule{
		ID:           "sched-1",
		PlantationID: "plant-1",
		Date:         "2026-08-30",
		CreatedAt:    now,
		UpdatedAt:    now,
		Status:       "active",
		SyncStatus:   model.SyncPending,
		Assignments: []*model.ScheduleAssignment{
			{ID: "sched-1_w1", ScheduleID: "sched-1", WorkerID: "w1", FieldID: "f1", Status: "assigned"},
		},
	}
	if err := st.SaveSchedule(ctx, sched); err != nil {
		t.Fatalf("SaveSchedule() failed: %v", err)
	}

	if err := st.DeleteSchedule(ctx, "sched-1"); err != nil {
		t.Fatalf("DeleteSchedule() failed: %v", err)
	}

	var count int
	if err := st.conn.QueryRow(`SELECT COUNT(*) FROM schedule_assignments WHERE schedule_id = ?`, "sched-1").Scan(&count); err != nil {
		t.Fatalf("Failed to count assignments: %v", err)
	}
	if count != 0 {
		t.Errorf("Orphan assignments = %d, want 0", count)
	}
}

// TestExecuteTransaction_Rollback tests that a failing statement undoes the
// whole batch
func TestExecuteTransaction_Rollback(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	stmts := []Statement{
		{SQL: `INSERT INTO workers (id, name, plantation_id, created_at, updated_at, sync_status) VALUES (?, ?, ?, ?, ?, ?)`,
			Args: []interface{}{"w1", "Asha", "plant-1", "2026-08-30T00:00:00Z", "2026-08-30T00:00:00Z", "pending"}},
		{SQL: `INSERT INTO no_such_table (id) VALUES (?)`, Args: []interface{}{"boom"}},
	}

	if err := st.ExecuteTransaction(ctx, stmts); err == nil {
		t.Fatal("ExecuteTransaction() succeeded, want error")
	}

	exists, err := st.WorkerExists(ctx, "w1")
	if err != nil {
		t.Fatalf("WorkerExists() failed: %v", err)
	}
	if exists {
		t.Error("Worker w1 exists after rollback")
	}
}

// TestUpsertActivityLog_RoundTrip tests log persistence and recency ordering
func TestUpsertActivityLog_RoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"log-1", "log-2", "log-3"} {
		entry := &model.ActivityLog{
			ID:            id,
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			OperationType: "irrigation",
			ZoneID:        "zone-1",
			Status:        "completed",
			Duration:      30,
			WaterVolume:   120.5,
			SyncStatus:    model.SyncPending,
			CreatedAt:     base,
			UpdatedAt:     base,
		}
		if err := st.UpsertActivityLog(ctx, entry); err != nil {
			t.Fatalf("UpsertActivityLog(%s) failed: %v", id, err)
		}
	}

	recent, err := st.RecentActivityLogs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentActivityLogs() failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].ID != "log-3" {
		t.Errorf("recent[0].ID = %q, want 'log-3'", recent[0].ID)
	}
}

// TestAppendOutbox tests outbox bookkeeping
func TestAppendOutbox(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.AppendOutbox(ctx, "field", "field-1", "upsert", `{"id":"field-1"}`); err != nil {
		t.Fatalf("AppendOutbox() failed: %v", err)
	}
	if err := st.AppendOutbox(ctx, "field", "field-2", "delete", ""); err != nil {
		t.Fatalf("AppendOutbox() failed: %v", err)
	}

	stats, err := st.OutboxStats(ctx)
	if err != nil {
		t.Fatalf("OutboxStats() failed: %v", err)
	}
	if stats["pending"] != 2 {
		t.Errorf("stats[pending] = %d, want 2", stats["pending"])
	}
	if len(stats) != 1 {
		t.Errorf("len(stats) = %d, want 1 (only 'pending' rows)", len(stats))
	}
}

// TestExecute_Success tests the single-statement write primitive
func TestExecute_Success(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	res, err := st.Execute(ctx,
		"INSERT INTO sync_queue (entity_type, entity_id, operation, created_at, status) VALUES (?, ?, ?, ?, 'pending')",
		"field", "field-1", "upsert", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		t.Fatalf("RowsAffected() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RowsAffected() = %d, want 1", n)
	}
}

// TestExecute_WriteError tests that a failed statement comes back as *WriteError
func TestExecute_WriteError(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	_, err := st.Execute(ctx, "INSERT INTO no_such_table (id) VALUES (?)", "x")
	if err == nil {
		t.Fatal("Execute() with bad statement succeeded, want error")
	}

	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Errorf("Execute() error = %T, want *WriteError", err)
	}
}
