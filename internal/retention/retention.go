// internal/retention/retention.go
//
// Periodic cleanup of finished matches.
//
// A gocron duration job deletes matches that reached a terminal status more
// than TTL ago. Running matches are left alone; their deadline is enforced
// lazily by the game engine on the next access.

package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Purger deletes terminal matches finished before the cutoff.
type Purger interface {
	PurgeFinished(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper runs Sweep on a fixed interval.
type Sweeper struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	sched    gocron.Scheduler
	stopOnce sync.Once
	stopErr  error
}

// New builds a Sweeper. now may be nil.
func New(p Purger, ttl, interval time.Duration, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{purger: p, ttl: ttl, interval: interval, now: now}
}

// Sweep purges once and reports how many matches were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.purger.PurgeFinished(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention: purge before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

// Start schedules the sweep job. The job stops when ctx is cancelled or Stop
// is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.ttl <= 0 || s.interval <= 0 {
		log.Info().Msg("retention: disabled")
		return nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("retention: scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
				return
			}
			if n > 0 {
				log.Info().Int64("purged", n).Dur("ttl", s.ttl).Msg("retention sweep")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("retention: job: %w", err)
	}
	s.sched = sched
	sched.Start()
	log.Info().Dur("ttl", s.ttl).Dur("every", s.interval).Msg("retention: started")

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down; it is safe to call more than once.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	s.stopOnce.Do(func() { s.stopErr = s.sched.Shutdown() })
	return s.stopErr
}
