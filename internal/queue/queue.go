// Package queue provides the durable offline queue for weather readings.
//
// The queue buffers readings acquired while the remote backend is known
// unreachable. It is an append-only FIFO list persisted as a single JSON
// document at a well-known path; every mutation rewrites the file atomically
// (temp file + rename) so a crash mid-write never corrupts the list.
//
// Delivery is at-least-once: items are only marked synced after a confirmed
// remote push, drains run oldest-first, and cleanup never removes an unsynced
// item regardless of age.
package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/plantationops/teasync/internal/model"
)

// Stats summarizes queue contents.
type Stats struct {
	Total    int `json:"total"`
	Synced   int `json:"synced"`
	Unsynced int `json:"unsynced"`
}

// Queue is a durable FIFO list of weather readings awaiting remote delivery.
// All methods are safe for concurrent use.
type Queue struct {
	path   string
	logger *log.Logger

	mu sync.Mutex
}

// Open returns a queue backed by the JSON document at path.
//
// The file is created on first append; opening a queue never touches disk.
// If logger is nil, a default logger writing to stderr is used.
func Open(path string, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &Queue{
		path:   path,
		logger: logger,
	}
}

// Append adds an item to the tail of the queue.
// A zero timestamp is filled with the current time.
func (q *Queue) Append(item *model.WeatherQueueItem) error {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("cannot queue invalid item: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return err
	}

	items = append(items, item)
	return q.save(items)
}

// GetAll returns every queued item in append order.
func (q *Queue) GetAll() ([]*model.WeatherQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.load()
}

// GetUnsynced returns the items not yet confirmed remotely, in append order.
// Drains must process the result front to back.
func (q *Queue) GetUnsynced() ([]*model.WeatherQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return nil, err
	}

	var unsynced []*model.WeatherQueueItem
	for _, item := range items {
		if !item.Synced {
			unsynced = append(unsynced, item)
		}
	}

	return unsynced, nil
}

// MarkSynced records that the item with the given ID was delivered.
// Returns an error if no such item is queued.
func (q *Queue) MarkSynced(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.ID == id {
			item.Synced = true
			return q.save(items)
		}
	}

	return fmt.Errorf("queue item %s not found", id)
}

// Cleanup removes synced items older than retentionDays.
// Unsynced items are never removed regardless of age.
// Returns the number of items removed.
func (q *Queue) Cleanup(retentionDays int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return 0, err
	}

	horizon := time.Now().UTC().AddDate(0, 0, -retentionDays)

	kept := items[:0]
	removed := 0
	for _, item := range items {
		if item.Synced && item.Timestamp.Before(horizon) {
			removed++
			continue
		}
		kept = append(kept, item)
	}

	if removed == 0 {
		return 0, nil
	}

	if err := q.save(kept); err != nil {
		return 0, err
	}

	q.logger.Printf("Cleanup removed %d synced items older than %d days", removed, retentionDays)
	return removed, nil
}

// Stats returns total/synced/unsynced counts.
func (q *Queue) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(items)}
	for _, item := range items {
		if item.Synced {
			stats.Synced++
		} else {
			stats.Unsynced++
		}
	}

	return stats, nil
}

// Clear removes every item, synced or not.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.save(nil)
}

// load reads the queue document. A missing file is an empty queue.
func (q *Queue) load() ([]*model.WeatherQueueItem, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue file %s: %w", q.path, err)
	}

	var items []*model.WeatherQueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse queue file %s: %w", q.path, err)
	}

	return items, nil
}

// save rewrites the queue document atomically.
func (q *Queue) save(items []*model.WeatherQueueItem) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	if items == nil {
		items = []*model.WeatherQueueItem{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}

	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("failed to replace queue file: %w", err)
	}

	return nil
}
