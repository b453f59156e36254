// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"promptflow/internal/common/logger"
	"promptflow/internal/models"
	executescheduled "promptflow/internal/workers/execution/execute-scheduled"
)

// Executor runs one scheduled batch.
type Executor interface {
	Execute(ctx context.Context, input *executescheduled.Input) *executescheduled.Result
}

// Scheduler ticks once per hour and fires the frequency buckets that are due.
// Hourly fires every tick, daily at midnight UTC, weekly on Monday midnight
// UTC. Batches run sequentially within a tick; a slow batch delays the next
// bucket, never the next tick.
type Scheduler struct {
	executor Executor
	logger   logger.Logger
	done     chan struct{}
	stopped  chan struct{}
}

func New(executor Executor, log logger.Logger) *Scheduler {
	return &Scheduler{
		executor: executor,
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or the context ends.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	close(s.done)
	<-s.stopped
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.stopped)

	// Align the first tick to the top of the next hour so wall-clock hours
	// map cleanly onto frequency buckets.
	now := time.Now().UTC()
	firstTick := now.Truncate(time.Hour).Add(time.Hour)
	timer := time.NewTimer(firstTick.Sub(now))
	defer timer.Stop()

	s.logger.Info("scheduler started", map[string]interface{}{
		"firstTick": firstTick.Format(time.RFC3339),
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case tick := <-timer.C:
			s.fire(ctx, tick.UTC())
			next := tick.UTC().Truncate(time.Hour).Add(time.Hour)
			timer.Reset(time.Until(next))
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick time.Time) {
	for _, frequency := range DueFrequencies(tick) {
		result := s.executor.Execute(ctx, &executescheduled.Input{Frequency: frequency})
		s.logger.Info("scheduled tick finished", map[string]interface{}{
			"frequency": string(frequency),
			"executed":  result.Executed,
			"failed":    len(result.Errors),
		})
	}
}

// DueFrequencies returns the buckets due at the given UTC instant.
func DueFrequencies(t time.Time) []models.Frequency {
	due := []models.Frequency{models.FrequencyHourly}
	if t.Hour() == 0 {
		due = append(due, models.FrequencyDaily)
		if t.Weekday() == time.Monday {
			due = append(due, models.FrequencyWeekly)
		}
	}
	return due
}
