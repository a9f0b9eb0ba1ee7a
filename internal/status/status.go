// Package status maintains the agent's view of the world: position,
// vitals, and the inventory snapshot the equip/mine handlers verify
// against.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/golemerr"
)

const (
	// Bounded retry for status queries: doubling backoff from the base.
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
)

// Snapshot is the actuator-reported world state.
type Snapshot struct {
	Position  [3]float64     `json:"position"`
	Health    float64        `json:"health"`
	Food      float64        `json:"food"`
	Role      string         `json:"role,omitempty"`
	Inventory map[string]int `json:"inventory"`
	Taken     time.Time      `json:"-"`
}

// Has reports whether the inventory holds at least count of item.
func (s *Snapshot) Has(item string, count int) bool {
	if s == nil {
		return false
	}
	return s.Inventory[item] >= count
}

// LowFood reports whether the food level is below the hunger threshold.
func (s *Snapshot) LowFood() bool {
	return s != nil && s.Food < 6
}

// Refresher queries and caches world snapshots. Concurrent refreshes
// collapse into one in-flight actuator call.
type Refresher struct {
	client actuator.Client
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.RWMutex
	cached *Snapshot

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewRefresher creates a refresher over the given actuator client.
func NewRefresher(client actuator.Client, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		client: client,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Cached returns the last snapshot without touching the actuator.
// Returns nil when nothing has been fetched yet.
func (r *Refresher) Cached() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached
}

// Snapshot returns the cached snapshot, refreshing first when stale or
// missing. maxAge <= 0 always refreshes.
func (r *Refresher) Snapshot(ctx context.Context, maxAge time.Duration) (*Snapshot, error) {
	if maxAge > 0 {
		if s := r.Cached(); s != nil && time.Since(s.Taken) < maxAge {
			return s, nil
		}
	}
	return r.Refresh(ctx)
}

// Refresh queries the actuator for a fresh snapshot, retrying up to
// retryAttempts times with doubling backoff between attempts.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := r.group.Do("status", func() (any, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (r *Refresher) refresh(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	delay := retryBase

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		resp, err := r.client.Dispatch(ctx, actuator.Command{Type: actuator.CmdStatus})
		switch {
		case err != nil:
			lastErr = err
		case !resp.OK:
			lastErr = golemerr.ErrActuatorRejected(actuator.CmdStatus, resp.Error)
		default:
			snap, perr := parseSnapshot(resp.Data)
			if perr != nil {
				lastErr = perr
				break
			}
			r.mu.Lock()
			r.cached = snap
			r.mu.Unlock()
			return snap, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < retryAttempts {
			r.logger.Warn("status refresh failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			r.sleep(delay)
			delay *= 2
		}
	}

	return nil, golemerr.ErrMaxRetries("status refresh", retryAttempts).WithCause(lastErr)
}

func parseSnapshot(data json.RawMessage) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty status payload")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse status payload: %w", err)
	}
	if snap.Inventory == nil {
		snap.Inventory = make(map[string]int)
	}
	snap.Taken = time.Now()
	return &snap, nil
}
