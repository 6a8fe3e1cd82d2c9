package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetainerSweeper materializes due retainer periods into pending payments.
type RetainerSweeper interface {
	MaterializeDue(ctx context.Context, now time.Time) (int, error)
}

// QuoteSweeper expires sent quotes whose validity window has passed.
type QuoteSweeper interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler periodically runs the billing sweeps: retainer period
// materialization and quote expiry. A tick that overruns the interval simply
// delays the next one; sweeps never run concurrently with themselves.
type Scheduler struct {
	retainers RetainerSweeper
	quotes    QuoteSweeper
	interval  time.Duration
	logger    *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a scheduler
func New(retainers RetainerSweeper, quotes QuoteSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		retainers: retainers,
		quotes:    quotes,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. The first sweep runs
// immediately so a restart catches up without waiting a full interval.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		s.runOnce()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				return
			}
		}
	}()
	s.logger.Info("billing scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.logger.Info("billing scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	now := time.Now()

	materialized, err := s.retainers.MaterializeDue(ctx, now)
	if err != nil {
		s.logger.Error("retainer sweep failed", zap.Error(err))
	} else if materialized > 0 {
		s.logger.Info("retainer sweep done", zap.Int("materialized", materialized))
	}

	expired, err := s.quotes.ExpireDue(ctx, now)
	if err != nil {
		s.logger.Error("quote expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("quote expiry sweep done", zap.Int("expired", expired))
	}
}
