package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically evicts rooms that outlived MaxAge. It runs as a
// background component started from main; the registry itself never
// self-triggers a sweep.
type Sweeper struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	maxAge   time.Duration
}

// NewSweeper creates a sweeper for the given registry.
func NewSweeper(registry *Registry, clock clockwork.Clock, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		registry: registry,
		clock:    clock,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.interval).
		Dur("max_age", s.maxAge).
		Msg("room sweeper started")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room sweeper shutting down")
			return
		case <-ticker.Chan():
			s.registry.SweepStale(s.maxAge)
		}
	}
}
