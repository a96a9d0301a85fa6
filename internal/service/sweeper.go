package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sweeper drives the hub's periodic liveness checks. Run exits on context
// cancellation or Stop.
type Sweeper struct {
	hub      *Hub
	interval time.Duration
	log      *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewSweeper creates a heartbeat sweeper over the hub.
func NewSweeper(hub *Hub, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		hub:      hub,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Run sweeps the hub every interval until ctx is cancelled or Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	s.log.Info("heartbeat sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat sweeper stopped")
			return
		case <-s.stop:
			s.log.Info("heartbeat sweeper stopped")
			return
		case <-ticker.C:
			s.hub.SweepOnce()
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
