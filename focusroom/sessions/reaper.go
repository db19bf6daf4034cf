package sessions

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/focusroom/server/internal/logger"
)

const (
	// how often the reaper scans for idle sessions
	DefaultSweepInterval = 1 * time.Hour

	// sessions idle longer than this are evicted
	DefaultMaxIdle = 24 * time.Hour
)

// Reaper periodically evicts sessions that have been idle beyond the
// retention window. It is a memory safeguard, not part of the client
// protocol: evicted sessions raise no events.
type Reaper struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	maxIdle  time.Duration
}

// creates a reaper for the given registry
func NewReaper(registry *Registry, clock clockwork.Clock, interval, maxIdle time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		clock:    clock,
		interval: interval,
		maxIdle:  maxIdle,
	}
}

// begins the sweep loop and blocks until the context is cancelled
func (r *Reaper) Start(ctx context.Context) {
	logger.Info("starting idle session reaper",
		"sweep_interval", r.interval,
		"max_idle", r.maxIdle,
	)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("idle session reaper stopped")
			return
		case <-ticker.Chan():
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	evicted := r.registry.SweepInactive(r.clock.Now(), r.maxIdle)

	if evicted > 0 {
		logger.Info("evicted idle sessions",
			"count", evicted,
			"max_idle", r.maxIdle,
		)
	}
}
