package remote

import (
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/plantationops/teasync/internal/model"
)

// Collection names. Each entity maps to one remote collection, and the
// document id within the collection is always the local primary key.
const (
	CollectionFields      = "fields"
	CollectionWorkers     = "workers"
	CollectionSchedules   = "saved_schedules"
	CollectionAssignments = "schedule_assignments"
	CollectionActivityLog = "activity_logs"
	CollectionWeather     = "weather_snapshots"
)

// fieldDoc mirrors model.Field in the remote store.
type fieldDoc struct {
	ID           *models.RecordID       `json:"id,omitempty"`
	Name         string                 `json:"name"`
	Slope        float64                `json:"slope"`
	MaxWorkers   int                    `json:"maxWorkers"`
	Location     string                 `json:"location,omitempty"`
	PlantationID string                 `json:"plantationId"`
	CreatedAt    models.CustomDateTime  `json:"createdAt"`
	UpdatedAt    *models.CustomDateTime `json:"updatedAt,omitempty"`
}

func fieldToDoc(f *model.Field) fieldDoc {
	updated := models.CustomDateTime{Time: f.UpdatedAt}
	return fieldDoc{
		Name:         f.Name,
		Slope:        f.Slope,
		MaxWorkers:   f.MaxWorkers,
		Location:     f.Location,
		PlantationID: f.PlantationID,
		CreatedAt:    models.CustomDateTime{Time: f.CreatedAt},
		UpdatedAt:    &updated,
	}
}

// docToField converts a remote document back into the local model.
// Documents with a missing id or name are reported as malformed so the
// caller can skip them without aborting the batch.
func docToField(d fieldDoc) (*model.Field, error) {
	id, err := docID(d.ID)
	if err != nil {
		return nil, err
	}
	f := &model.Field{
		ID:           id,
		Name:         d.Name,
		Slope:        d.Slope,
		MaxWorkers:   d.MaxWorkers,
		Location:     d.Location,
		PlantationID: d.PlantationID,
		CreatedAt:    d.CreatedAt.Time,
		UpdatedAt:    docTime(d.UpdatedAt),
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("malformed field document %s: %w", id, err)
	}
	return f, nil
}

type workerDoc struct {
	ID           *models.RecordID       `json:"id,omitempty"`
	Name         string                 `json:"name"`
	WorkerID     string                 `json:"workerId,omitempty"`
	BirthDate    string                 `json:"birthDate,omitempty"`
	Age          int                    `json:"age"`
	Experience   int                    `json:"experience"`
	Gender       string                 `json:"gender,omitempty"`
	PlantationID string                 `json:"plantationId"`
	CreatedAt    models.CustomDateTime  `json:"createdAt"`
	UpdatedAt    *models.CustomDateTime `json:"updatedAt,omitempty"`
}

func workerToDoc(w *model.Worker) workerDoc {
	updated := models.CustomDateTime{Time: w.UpdatedAt}
	return workerDoc{
		Name:         w.Name,
		WorkerID:     w.WorkerID,
		BirthDate:    w.BirthDate,
		Age:          w.Age,
		Experience:   w.Experience,
		Gender:       w.Gender,
		PlantationID: w.PlantationID,
		CreatedAt:    models.CustomDateTime{Time: w.CreatedAt},
		UpdatedAt:    &updated,
	}
}

func docToWorker(d workerDoc) (*model.Worker, error) {
	id, err := docID(d.ID)
	if err != nil {
		return nil, err
	}
	w := &model.Worker{
		ID:           id,
		Name:         d.Name,
		WorkerID:     d.WorkerID,
		BirthDate:    d.BirthDate,
		Age:          d.Age,
		Experience:   d.Experience,
		Gender:       d.Gender,
		PlantationID: d.PlantationID,
		CreatedAt:    d.CreatedAt.Time,
		UpdatedAt:    docTime(d.UpdatedAt),
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("malformed worker document %s: %w", id, err)
	}
	return w, nil
}

type scheduleDoc struct {
	ID                *models.RecordID       `json:"id,omitempty"`
	PlantationID      string                 `json:"plantationId"`
	Date              string                 `json:"date"`
	TotalWorkers      int                    `json:"totalWorkers"`
	TotalFields       int                    `json:"totalFields"`
	AverageEfficiency float64                `json:"averageEfficiency"`
	Status            string                 `json:"status,omitempty"`
	CreatedAt         models.CustomDateTime  `json:"createdAt"`
	UpdatedAt         *models.CustomDateTime `json:"updatedAt,omitempty"`
}

func scheduleToDoc(s *model.Schedule) scheduleDoc {
	updated := models.CustomDateTime{Time: s.UpdatedAt}
	return scheduleDoc{
		PlantationID:      s.PlantationID,
		Date:              s.Date,
		TotalWorkers:      s.TotalWorkers,
		TotalFields:       s.TotalFields,
		AverageEfficiency: s.AverageEfficiency,
		Status:            s.Status,
		CreatedAt:         models.CustomDateTime{Time: s.CreatedAt},
		UpdatedAt:         &updated,
	}
}

func docToSchedule(d scheduleDoc) (*model.Schedule, error) {
	id, err := docID(d.ID)
	if err != nil {
		return nil, err
	}
	s := &model.Schedule{
		ID:                id,
		PlantationID:      d.PlantationID,
		Date:              d.Date,
		TotalWorkers:      d.TotalWorkers,
		TotalFields:       d.TotalFields,
		AverageEfficiency: d.AverageEfficiency,
		Status:            d.Status,
		CreatedAt:         d.CreatedAt.Time,
		UpdatedAt:         docTime(d.UpdatedAt),
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("malformed schedule document %s: %w", id, err)
	}
	return s, nil
}

type assignmentDoc struct {
	ID                  *models.RecordID `json:"id,omitempty"`
	ScheduleID          string           `json:"scheduleId"`
	WorkerID            string           `json:"workerId"`
	WorkerName          string           `json:"workerName,omitempty"`
	FieldID             string           `json:"fieldId,omitempty"`
	FieldName           string           `json:"fieldName,omitempty"`
	PredictedEfficiency float64          `json:"predictedEfficiency"`
	Status              string           `json:"status,omitempty"`
}

func assignmentToDoc(a *model.ScheduleAssignment) assignmentDoc {
	return assignmentDoc{
		ScheduleID:          a.ScheduleID,
		WorkerID:            a.WorkerID,
		WorkerName:          a.WorkerName,
		FieldID:             a.FieldID,
		FieldName:           a.FieldName,
		PredictedEfficiency: a.PredictedEfficiency,
		Status:              a.Status,
	}
}

func docToAssignment(d assignmentDoc) (*model.ScheduleAssignment, error) {
	id, err := docID(d.ID)
	if err != nil {
		return nil, err
	}
	a := &model.ScheduleAssignment{
		ID:                  id,
		ScheduleID:          d.ScheduleID,
		WorkerID:            d.WorkerID,
		WorkerName:          d.WorkerName,
		FieldID:             d.FieldID,
		FieldName:           d.FieldName,
		PredictedEfficiency: d.PredictedEfficiency,
		Status:              d.Status,
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("malformed assignment document %s: %w", id, err)
	}
	return a, nil
}

type activityLogDoc struct {
	ID               *models.RecordID       `json:"id,omitempty"`
	Timestamp        models.CustomDateTime  `json:"timestamp"`
	OperationType    string                 `json:"operation_type"`
	ZoneID           string                 `json:"zone_id,omitempty"`
	Status           string                 `json:"status,omitempty"`
	Duration         int                    `json:"duration"`
	Pressure         float64                `json:"pressure"`
	FlowRate         float64                `json:"flow_rate"`
	WaterVolume      float64                `json:"water_volume"`
	FertilizerVolume float64                `json:"fertilizer_volume"`
	StartMoisture    float64                `json:"start_moisture"`
	EndMoisture      float64                `json:"end_moisture"`
	Notes            string                 `json:"notes,omitempty"`
	CreatedAt        models.CustomDateTime  `json:"createdAt"`
	UpdatedAt        *models.CustomDateTime `json:"updatedAt,omitempty"`
}

func activityLogToDoc(l *model.ActivityLog) activityLogDoc {
	updated := models.CustomDateTime{Time: l.UpdatedAt}
	return activityLogDoc{
		Timestamp:        models.CustomDateTime{Time: l.Timestamp},
		OperationType:    l.OperationType,
		ZoneID:           l.ZoneID,
		Status:           l.Status,
		Duration:         l.Duration,
		Pressure:         l.Pressure,
		FlowRate:         l.FlowRate,
		WaterVolume:      l.WaterVolume,
		FertilizerVolume: l.FertilizerVolume,
		StartMoisture:    l.StartMoisture,
		EndMoisture:      l.EndMoisture,
		Notes:            l.Notes,
		CreatedAt:        models.CustomDateTime{Time: l.CreatedAt},
		UpdatedAt:        &updated,
	}
}

func docToActivityLog(d activityLogDoc) (*model.ActivityLog, error) {
	id, err := docID(d.ID)
	if err != nil {
		return nil, err
	}
	l := &model.ActivityLog{
		ID:               id,
		Timestamp:        d.Timestamp.Time,
		OperationType:    d.OperationType,
		ZoneID:           d.ZoneID,
		Status:           d.Status,
		Duration:         d.Duration,
		Pressure:         d.Pressure,
		FlowRate:         d.FlowRate,
		WaterVolume:      d.WaterVolume,
		FertilizerVolume: d.FertilizerVolume,
		StartMoisture:    d.StartMoisture,
		EndMoisture:      d.EndMoisture,
		Notes:            d.Notes,
		CreatedAt:        d.CreatedAt.Time,
		UpdatedAt:        docTime(d.UpdatedAt),
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("malformed activity log document %s: %w", id, err)
	}
	return l, nil
}

type weatherDoc struct {
	ID        *models.RecordID      `json:"id,omitempty"`
	Timestamp models.CustomDateTime `json:"timestamp"`
	Current   model.WeatherSnapshot `json:"current"`
	Forecast  []model.ForecastDay   `json:"forecast,omitempty"`
}

func weatherToDoc(item *model.WeatherQueueItem) weatherDoc {
	return weatherDoc{
		Timestamp: models.CustomDateTime{Time: item.Timestamp},
		Current:   item.Current,
		Forecast:  item.Forecast,
	}
}

// docID extracts the string identifier shared with the local store.
func docID(rid *models.RecordID) (string, error) {
	if rid == nil {
		return "", fmt.Errorf("malformed document: missing id")
	}
	id, ok := rid.ID.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("malformed document: non-string id %v", rid.ID)
	}
	return id, nil
}

func docTime(t *models.CustomDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}
