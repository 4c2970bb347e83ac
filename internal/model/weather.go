package model

import (
	"fmt"
	"time"
)

// WeatherSnapshot is a point-in-time reading of field conditions.
type WeatherSnapshot struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	RainfallMM   float64 `json:"rainfall_mm"`
	WindSpeedKPH float64 `json:"wind_speed_kph"`
	Condition    string  `json:"condition,omitempty"`
}

// ForecastDay is a one-day forecast entry.
type ForecastDay struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	MinTempC   float64 `json:"min_temp_c"`
	MaxTempC   float64 `json:"max_temp_c"`
	RainfallMM float64 `json:"rainfall_mm"`
	Condition  string  `json:"condition,omitempty"`
}

// WeatherReading is a freshly acquired reading: current conditions plus a
// short forecast. Readings are acquired by the background reconciliation run
// and either pushed directly or parked in the offline queue.
type WeatherReading struct {
	Timestamp time.Time       `json:"timestamp"`
	Current   WeatherSnapshot `json:"current"`
	Forecast  []ForecastDay   `json:"forecast,omitempty"`
}

// WeatherQueueItem is one entry of the durable offline queue. Items are
// append-only and drained oldest-first; Synced items are retained until the
// cleanup horizon passes, unsynced items are never expired.
type WeatherQueueItem struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Current   WeatherSnapshot `json:"current"`
	Forecast  []ForecastDay   `json:"forecast,omitempty"`
	Synced    bool            `json:"synced"`
}

// Validate checks that the queue item has the attributes required for persistence.
func (i *WeatherQueueItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if i.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
