package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SweeperConfig bounds the idle sweep. Both values are required
// configuration; validation rejects zero values upstream.
type SweeperConfig struct {
	// IdleThreshold is how long a session may sit idle before removal.
	IdleThreshold time.Duration

	// Interval is how often the sweep runs.
	Interval time.Duration
}

// Sweeper periodically removes idle sessions from a registry until stopped.
// Sweep outcomes are logged, never fatal to the background task.
type Sweeper struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *Registry
	cfg      SweeperConfig
	logger   *zerolog.Logger
	wg       sync.WaitGroup
}

// NewSweeper creates a Sweeper for the registry.
func NewSweeper(registry *Registry, cfg SweeperConfig, logger *zerolog.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start begins the periodic sweep. Call once.
func (s *Sweeper) Start() {
	ticker := time.NewTicker(s.cfg.Interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		if s.logger != nil {
			s.logger.Info().
				Dur("interval", s.cfg.Interval).
				Dur("idle_threshold", s.cfg.IdleThreshold).
				Msg("idle sweeper started")
		}

		for {
			select {
			case <-s.ctx.Done():
				if s.logger != nil {
					s.logger.Info().Msg("idle sweeper stopped")
				}
				return
			case <-ticker.C:
				s.registry.SweepIdle(s.cfg.IdleThreshold)
			}
		}
	}()
}

// Stop cancels the sweep and waits for the goroutine to finish.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}
