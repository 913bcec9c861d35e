// Package sweepers runs the periodic maintenance passes over the queue and
// record history.
package sweepers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrolworks/inspection-service/internal/store"
)

// RetentionSweeper periodically clears finished queue entries, fails stale
// assignments, and prunes old records.
type RetentionSweeper struct {
	queue   store.TaskQueue
	records store.RecordStore
	logger  zerolog.Logger

	interval        time.Duration
	completedTTL    time.Duration
	assignedTimeout time.Duration
	recordRetention time.Duration

	stopChan chan struct{}
}

// NewRetentionSweeper creates a sweeper. A non-positive retention or TTL
// disables that pass.
func NewRetentionSweeper(
	queue store.TaskQueue,
	records store.RecordStore,
	logger zerolog.Logger,
	interval, completedTTL, assignedTimeout, recordRetention time.Duration,
) *RetentionSweeper {
	return &RetentionSweeper{
		queue:           queue,
		records:         records,
		logger:          logger.With().Str("component", "sweeper").Logger(),
		interval:        interval,
		completedTTL:    completedTTL,
		assignedTimeout: assignedTimeout,
		recordRetention: recordRetention,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *RetentionSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting retention sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Retention sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Retention sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop
func (s *RetentionSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one maintenance pass. Each sub-pass is independent; a failure
// in one is logged and does not block the others.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	if s.completedTTL > 0 {
		n, err := s.queue.ClearCompleted(ctx, now.Add(-s.completedTTL))
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to clear completed tasks")
		} else if n > 0 {
			s.logger.Info().Int("cleared", n).Msg("Cleared completed tasks")
		}
	}

	if s.assignedTimeout > 0 {
		n, err := s.queue.FailStaleAssigned(ctx, now.Add(-s.assignedTimeout))
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to sweep stale assignments")
		} else if n > 0 {
			s.logger.Warn().Int("failed", n).Msg("Failed stale assigned tasks")
		}
	}

	if s.recordRetention > 0 {
		n, err := s.records.PruneRecords(ctx, now.Add(-s.recordRetention))
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to prune task records")
		} else if n > 0 {
			s.logger.Info().Int("pruned", n).Msg("Pruned old task records")
		}
	}
}
