// Package model provides the domain entities shared by the local store,
// the remote adapter, and the per-entity synchronizers.
//
// Every entity carries the same synchronization bookkeeping: a string
// identifier that is valid both as the SQLite primary key and as the remote
// document id, RFC 3339 created/updated timestamps, and a SyncStatus flag.
// A record is Pending from the moment it is written locally until a remote
// write for that exact identifier has been confirmed. Staying Pending for a
// long time is expected when the device is offline; it is not an error state.
package model

import (
	"fmt"
	"time"
)

// SyncStatus tracks whether the local copy of a record has been confirmed
// written to the remote store.
type SyncStatus string

const (
	// SyncPending means the record has local changes not yet confirmed remotely.
	SyncPending SyncStatus = "pending"

	// SyncSynced means the remote copy matches the last local write.
	SyncSynced SyncStatus = "synced"
)

// Field is a tea field (block) within a plantation.
type Field struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Slope        float64    `json:"slope"` // degrees
	MaxWorkers   int        `json:"maxWorkers"`
	Location     string     `json:"location"`
	PlantationID string     `json:"plantationId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	SyncStatus   SyncStatus `json:"syncStatus"`
}

// Validate checks that the field has the attributes required for persistence.
func (f *Field) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.PlantationID == "" {
		return fmt.Errorf("plantationId is required")
	}
	if f.MaxWorkers < 0 {
		return fmt.Errorf("maxWorkers must not be negative (got %d)", f.MaxWorkers)
	}
	return nil
}

// Worker is a plantation worker available for scheduling.
type Worker struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	WorkerID     string     `json:"workerId"` // human-assigned badge number
	BirthDate    string     `json:"birthDate"`
	Age          int        `json:"age"`
	Experience   int        `json:"experience"` // years
	Gender       string     `json:"gender"`
	PlantationID string     `json:"plantationId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	SyncStatus   SyncStatus `json:"syncStatus"`
}

// Validate checks that the worker has the attributes required for persistence.
func (w *Worker) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("id is required")
	}
	if w.Name == "" {
		return fmt.Errorf("name is required")
	}
	if w.PlantationID == "" {
		return fmt.Errorf("plantationId is required")
	}
	return nil
}

// Schedule is a saved daily work plan. Its assignments are owned exclusively
// by the schedule: they are written and deleted inside the same transaction
// as their parent, so no orphan assignment can ever exist.
type Schedule struct {
	ID                string     `json:"id"`
	PlantationID      string     `json:"plantationId"`
	Date              string     `json:"date"` // YYYY-MM-DD
	TotalWorkers      int        `json:"totalWorkers"`
	TotalFields       int        `json:"totalFields"`
	AverageEfficiency float64    `json:"averageEfficiency"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	Status            string     `json:"status"` // draft, active, completed
	SyncStatus        SyncStatus `json:"syncStatus"`

	Assignments []*ScheduleAssignment `json:"assignments,omitempty"`
}

// Validate checks that the schedule has the attributes required for persistence.
func (s *Schedule) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.PlantationID == "" {
		return fmt.Errorf("plantationId is required")
	}
	if s.Date == "" {
		return fmt.Errorf("date is required")
	}
	for _, a := range s.Assignments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

// ScheduleAssignment maps one worker to one field within a schedule.
// Its identifier is derived deterministically from the schedule and worker
// identifiers; see AssignmentID.
type ScheduleAssignment struct {
	ID                  string  `json:"id"`
	ScheduleID          string  `json:"scheduleId"`
	WorkerID            string  `json:"workerId"`
	WorkerName          string  `json:"workerName"`
	FieldID             string  `json:"fieldId"`
	FieldName           string  `json:"fieldName"`
	PredictedEfficiency float64 `json:"predictedEfficiency"`
	Status              string  `json:"status"`
}

// Validate checks that the assignment has the attributes required for persistence.
func (a *ScheduleAssignment) Validate() error {
	if a.ScheduleID == "" {
		return fmt.Errorf("scheduleId is required")
	}
	if a.WorkerID == "" {
		return fmt.Errorf("workerId is required")
	}
	return nil
}

// ActivityLog records one field operation (irrigation, fertilization, and so on).
type ActivityLog struct {
	ID               string     `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	OperationType    string     `json:"operation_type"`
	ZoneID           string     `json:"zone_id"`
	Status           string     `json:"status"`
	Duration         int        `json:"duration"` // minutes
	Pressure         float64    `json:"pressure"`
	FlowRate         float64    `json:"flow_rate"`
	WaterVolume      float64    `json:"water_volume"`
	FertilizerVolume float64    `json:"fertilizer_volume"`
	StartMoisture    float64    `json:"start_moisture"`
	EndMoisture      float64    `json:"end_moisture"`
	Notes            string     `json:"notes,omitempty"`
	SyncStatus       SyncStatus `json:"syncStatus"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Validate checks that the log entry has the attributes required for persistence.
func (l *ActivityLog) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.OperationType == "" {
		return fmt.Errorf("operation_type is required")
	}
	if l.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
