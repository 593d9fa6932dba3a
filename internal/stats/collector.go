// Package stats counts processed events and periodically persists the
// counters through a state store.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
)

// StateKey is the document key the webhook counters persist under. Other
// producers (the feed poller) run their own collector under their own key.
const StateKey = "stats"

// Stats is a point-in-time copy of the counters. PerKind is sparse: kinds
// never seen are absent. Total always equals the sum over PerKind.
type Stats struct {
	Total   uint64            `yaml:"total" json:"total_requests"`
	PerKind map[string]uint64 `yaml:"perKind" json:"events_by_type"`
}

// Collector counts events by kind. Record moves total and the per-kind
// counter together under one lock, so a snapshot can never observe one
// without the other. Persistence is periodic, not write-through: counters
// are request-rate, and losing one flush interval on a crash is acceptable.
type Collector struct {
	key string

	mu      sync.Mutex
	total   uint64
	perKind map[string]uint64
	dirty   bool
}

// NewCollector returns a collector with all counters at zero, persisting
// under the given document key.
func NewCollector(key string) *Collector {
	return &Collector{key: key, perKind: make(map[string]uint64)}
}

// Record counts one event of the given kind.
func (c *Collector) Record(kind string) {
	c.mu.Lock()
	c.total++
	c.perKind[kind]++
	c.dirty = true
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadFrom restores counters from the store. A missing document leaves the
// collector at zero.
func (c *Collector) LoadFrom(store state.Store) error {
	var doc Stats
	err := store.Load(c.key, &doc)
	if errors.Is(err, state.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = doc.Total
	c.perKind = make(map[string]uint64, len(doc.PerKind))
	for kind, n := range doc.PerKind {
		c.perKind[kind] = n
	}
	return nil
}

// Flush saves the counters if they changed since the last flush. The save
// runs outside the lock; a recording that lands mid-flush stays dirty and
// is picked up by the next one.
func (c *Collector) Flush(store state.Store) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snap := c.snapshotLocked()
	c.dirty = false
	c.mu.Unlock()

	if err := store.Save(c.key, snap); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return fmt.Errorf("saving stats: %w", err)
	}
	return nil
}

// Run flushes on a ticker until ctx is canceled, then flushes one last time.
func (c *Collector) Run(ctx context.Context, store state.Store, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.Flush(store); err != nil {
				log.Error("final stats flush failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := c.Flush(store); err != nil {
				log.Warn("stats flush failed", "err", err)
			}
		}
	}
}

func (c *Collector) snapshotLocked() Stats {
	perKind := make(map[string]uint64, len(c.perKind))
	for k, n := range c.perKind {
		perKind[k] = n
	}
	return Stats{Total: c.total, PerKind: perKind}
}
