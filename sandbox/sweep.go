package sandbox

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically removes workspaces that a failed release left behind
type Sweeper struct {
	logger   *zap.Logger
	manager  *WorkspaceManager
	interval time.Duration
	maxAge   time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper; Start must be called to run it
func NewSweeper(logger *zap.Logger, manager *WorkspaceManager, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		logger:   logger,
		manager:  manager,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in the background
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("starting workspace sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("max_age", s.maxAge))

	go s.loop()
}

// Stop ends the loop and waits for it to exit
func (s *Sweeper) Stop() {
	if !s.started.Load() {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single pass and logs the result
func (s *Sweeper) SweepOnce() int {
	removed, err := s.manager.Sweep(s.maxAge)
	if err != nil {
		s.logger.Warn("workspace sweep incomplete", zap.Int("removed", removed), zap.Error(err))
	} else if removed > 0 {
		s.logger.Info("removed orphaned workspaces", zap.Int("removed", removed))
	}
	return removed
}
