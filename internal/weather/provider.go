// Package weather acquires current conditions and a short forecast from an
// Open-Meteo compatible HTTP endpoint.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// DefaultTimeout bounds a single forecast request.
const DefaultTimeout = 10 * time.Second

// Provider acquires a fresh weather reading.
type Provider interface {
	Fetch(ctx context.Context) (*model.WeatherReading, error)
}

// Client fetches readings from an Open-Meteo compatible forecast API.
type Client struct {
	endpoint  string
	latitude  float64
	longitude float64
	client    *http.Client
	logger    *log.Logger
}

// Config customizes a weather client.
type Config struct {
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives fetch diagnostics. Nil means a default stderr logger.
	Logger *log.Logger
}

// New creates a weather client for the given endpoint and coordinates.
func New(endpoint string, latitude, longitude float64, config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[weather] ", log.LstdFlags)
	}
	return &Client{
		endpoint:  endpoint,
		latitude:  latitude,
		longitude: longitude,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// forecastResponse mirrors the subset of the Open-Meteo forecast payload the
// client consumes.
type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// Fetch requests current conditions and the daily forecast.
func (c *Client) Fetch(ctx context.Context) (*model.WeatherReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather endpoint returned status %d", resp.StatusCode)
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	reading := &model.WeatherReading{
		Timestamp: time.Now().UTC(),
		Current: model.WeatherSnapshot{
			TemperatureC: payload.Current.Temperature,
			HumidityPct:  payload.Current.Humidity,
			RainfallMM:   payload.Current.Precipitation,
			WindSpeedKPH: payload.Current.WindSpeed,
			Condition:    conditionName(payload.Current.WeatherCode),
		},
	}

	for i, date := range payload.Daily.Time {
		day := model.ForecastDay{Date: date}
		if i < len(payload.Daily.TemperatureMin) {
			day.MinTempC = payload.Daily.TemperatureMin[i]
		}
		if i < len(payload.Daily.TemperatureMax) {
			day.MaxTempC = payload.Daily.TemperatureMax[i]
		}
		if i < len(payload.Daily.PrecipitationSum) {
			day.RainfallMM = payload.Daily.PrecipitationSum[i]
		}
		if i < len(payload.Daily.WeatherCode) {
			day.Condition = conditionName(payload.Daily.WeatherCode[i])
		}
		reading.Forecast = append(reading.Forecast, day)
	}

	return reading, nil
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", c.longitude))
	q.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m,weather_code")
	q.Set("daily", "temperature_2m_min,temperature_2m_max,precipitation_sum,weather_code")
	q.Set("timezone", "auto")
	return c.endpoint + "?" + q.Encode()
}

// conditionName maps WMO weather interpretation codes to a short label.
func conditionName(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
