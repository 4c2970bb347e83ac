// Package reconcile runs the periodic weather reconciliation pass: acquire a
// fresh reading, then either deliver it (and drain the backlog) or park it in
// the offline queue depending on remote reachability.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/plantationops/teasync/internal/model"
	"github.com/plantationops/teasync/internal/queue"
	"github.com/plantationops/teasync/internal/weather"
)

// Prober reports whether the remote backend is currently reachable.
type Prober interface {
	IsReachable(ctx context.Context) bool
}

// Pusher delivers one queued reading to the remote archive.
type Pusher interface {
	Push(ctx context.Context, item *model.WeatherQueueItem) error
}

// Result summarizes one reconciliation run.
type Result struct {
	Reachable bool `json:"reachable"`
	// Drained is the number of backlog items delivered this run.
	Drained int `json:"drained"`
	// Queued reports whether the fresh reading was parked offline.
	Queued bool `json:"queued"`
	// Pushed reports whether the fresh reading was delivered directly.
	Pushed bool `json:"pushed"`
}

// Reconciler coordinates one weather delivery cycle.
type Reconciler struct {
	provider weather.Provider
	probe    Prober
	queue    *queue.Queue
	pusher   Pusher
	ids      model.IDAllocator
	logger   *log.Logger

	// notify, when set, receives a Result after every completed run.
	notify func(Result)
}

// Config assembles a reconciler.
type Config struct {
	Provider weather.Provider
	Probe    Prober
	Queue    *queue.Queue
	Pusher   Pusher
	// IDs allocates queue item identifiers. Nil means UUIDs.
	IDs model.IDAllocator
	// Notify, when non-nil, is called with the outcome of each run.
	Notify func(Result)
	Logger *log.Logger
}

// New creates a reconciler.
func New(config Config) *Reconciler {
	ids := config.IDs
	if ids == nil {
		ids = model.UUIDAllocator{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Reconciler{
		provider: config.Provider,
		probe:    config.Probe,
		queue:    config.Queue,
		pusher:   config.Pusher,
		ids:      ids,
		logger:   logger,
		notify:   config.Notify,
	}
}

// Run executes one reconciliation cycle.
//
// A failed weather fetch ends the cycle early with an error: there is
// nothing to deliver and the backlog will be retried next run. When the
// remote is reachable the backlog is drained oldest-first before the fresh
// reading is pushed directly; a drain stops at the first failure so ordering
// is preserved. When unreachable, the fresh reading is appended to the queue.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result
	defer func() {
		if r.notify != nil {
			r.notify(res)
		}
	}()

	reading, err := r.provider.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to acquire weather reading: %w", err)
	}

	res.Reachable = r.probe.IsReachable(ctx)

	if !res.Reachable {
		item := r.queueItem(reading)
		if err := r.queue.Append(item); err != nil {
			return res, fmt.Errorf("failed to queue weather reading: %w", err)
		}
		res.Queued = true
		r.logger.Printf("Remote unreachable, queued reading %s", item.ID)
		return res, nil
	}

	drained, err := r.drain(ctx)
	res.Drained = drained
	if err != nil {
		r.logger.Printf("Drain stopped after %d items: %v", drained, err)
	}

	// The fresh reading is pushed directly and never queued on failure; a
	// failed direct push is recovered by the next run's fetch.
	item := r.queueItem(reading)
	if err := r.pusher.Push(ctx, item); err != nil {
		r.logger.Printf("Direct push failed for reading %s: %v", item.ID, err)
		return res, nil
	}
	res.Pushed = true

	return res, nil
}

// drain delivers the unsynced backlog oldest-first, stopping at the first
// failure. Returns the number delivered.
func (r *Reconciler) drain(ctx context.Context) (int, error) {
	backlog, err := r.queue.GetUnsynced()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue backlog: %w", err)
	}

	drained := 0
	for _, item := range backlog {
		if err := r.pusher.Push(ctx, item); err != nil {
			return drained, err
		}
		if err := r.queue.MarkSynced(item.ID); err != nil {
			return drained, err
		}
		drained++
	}

	if drained > 0 {
		r.logger.Printf("Drained %d queued readings", drained)
	}
	return drained, nil
}

func (r *Reconciler) queueItem(reading *model.WeatherReading) *model.WeatherQueueItem {
	return &model.WeatherQueueItem{
		ID:        r.ids.NewID(),
		Timestamp: reading.Timestamp,
		Current:   reading.Current,
		Forecast:  reading.Forecast,
	}
}
