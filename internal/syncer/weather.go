package syncer

import (
	"context"
	"log"
	"os"

	"github.com/plantationops/teasync/internal/model"
)

// WeatherSyncer pushes weather readings to the remote archive. Unlike the
// record syncers it carries no local table; queued readings live in the
// offline queue and the reconciler decides when to push.
type WeatherSyncer struct {
	remote WeatherRemote
	logger *log.Logger
}

// NewWeatherSyncer creates a weather synchronizer.
func NewWeatherSyncer(remote WeatherRemote, logger *log.Logger) *WeatherSyncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync:weather] ", log.LstdFlags)
	}
	return &WeatherSyncer{remote: remote, logger: logger}
}

// Push sends one queued reading to the remote archive.
func (s *WeatherSyncer) Push(ctx context.Context, item *model.WeatherQueueItem) error {
	if err := s.remote.PushWeather(ctx, item); err != nil {
		return &RemoteWriteError{Entity: "weather", ID: item.ID, Err: err}
	}
	return nil
}
