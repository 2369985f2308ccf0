package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	purgeSchedule   = "@every 5m"
	cleanupSchedule = "@every 10m"
	StateTTL        = 10 * time.Minute
)

// StatePurger removes OAuth states that were never redeemed.
type StatePurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner is anything holding per-client state that goes stale, such as a
// rate limiter.
type Cleaner interface {
	Cleanup()
}

type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(states StatePurger, cleaners ...Cleaner) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(purgeSchedule, func() { PurgeStates(context.Background(), states, time.Now()) }); err != nil {
		return nil, err
	}
	for _, cl := range cleaners {
		if _, err := c.AddFunc(cleanupSchedule, cl.Cleanup); err != nil {
			return nil, err
		}
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Job scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func PurgeStates(ctx context.Context, states StatePurger, now time.Time) {
	n, err := states.PurgeOlderThan(ctx, now.Add(-StateTTL))
	if err != nil {
		slog.Error("Failed to purge spotify auth states", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Purged expired spotify auth states", "count", n)
	}
}
