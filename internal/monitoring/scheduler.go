package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the media sweeper on a cron schedule.
type Scheduler struct {
	schedule cron.Schedule
	sweeper  *MediaSweeper
	timeout  time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler parses a standard five-field cron expression.
func NewScheduler(expr string, sweeper *MediaSweeper) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid media sweep schedule %q: %w", expr, err)
	}
	return &Scheduler{
		schedule: schedule,
		sweeper:  sweeper,
		timeout:  5 * time.Minute,
		done:     make(chan struct{}),
	}, nil
}

// Run sweeps at every scheduled time until Stop is called.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting media sweep scheduler")
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.done:
			timer.Stop()
			log.Info().Msg("Stopping media sweep scheduler")
			return
		case <-timer.C:
			s.runOnce()
		}
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled media sweep failed")
	}
}
