package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/xharvest/internal/scheduler"
)

// ErrNoJobs is returned by RunSchedule when the config lists no jobs
var ErrNoJobs = errors.New("no scheduled jobs configured")

// Scheduler builds a scheduler holding every configured job. Jobs run through
// Harvest, so a tick that lands while another harvest runs fails with ErrHarvestActive.
func (a *App) Scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	cfg := a.getSnapshot().config
	if len(cfg.Schedule.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	sched, err := scheduler.New(ctx, cfg.Schedule.Timezone, a.rootLog)
	if err != nil {
		return nil, err
	}
	for _, job := range cfg.Schedule.Jobs {
		opts := HarvestOptions{URL: job.URL, Output: job.Output}
		if err := sched.AddJob(job.Name, job.Cron, func(ctx context.Context) error {
			_, err := a.Harvest(ctx, opts)
			return err
		}); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	return sched, nil
}

// RunSchedule runs the configured jobs until ctx is cancelled, then waits for
// running harvests to finish their final checkpoint.
func (a *App) RunSchedule(ctx context.Context) error {
	sched, err := a.Scheduler(ctx)
	if err != nil {
		return err
	}
	sched.Start()
	for _, j := range sched.ListJobs() {
		a.log.Info().Str("job", j.Name).Time("next", j.NextRun).Msg("Scheduled")
	}

	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}
