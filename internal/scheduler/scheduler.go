// Package scheduler re-runs a job on a cron schedule within one process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled invocation.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	job      cron.Job
	spec     string
	log      *slog.Logger
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Every converts an interval to a schedule spec.
func Every(d time.Duration) string {
	return "@every " + d.String()
}

// New parses spec (a 5-field cron expression or a descriptor like
// "@every 6h") and wraps job so a run that is still going makes the next
// tick a no-op.
func New(ctx context.Context, spec string, job Job, log *slog.Logger) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	log = log.With("component", "scheduler")
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	chain := cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))

	s := &Scheduler{
		cron:     cron.New(cron.WithParser(parser), cron.WithLogger(cronLog)),
		schedule: schedule,
		spec:     spec,
		log:      log,
	}
	s.job = chain.Then(cron.FuncJob(func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("scheduled run failed", "error", err, "duration", time.Since(start))
			return
		}
		s.log.Info("scheduled run finished", "duration", time.Since(start))
	}))
	return s, nil
}

// Run schedules the job and blocks until ctx is done. With runNow the job
// also starts immediately. It waits for a running job before returning.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	s.cron.Schedule(s.schedule, s.job)
	s.cron.Start()
	s.log.Info("scheduler started", "schedule", s.spec, "next", s.schedule.Next(time.Now()))

	first := make(chan struct{})
	if runNow {
		go func() {
			defer close(first)
			s.job.Run()
		}()
	} else {
		close(first)
	}

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	<-first
	s.log.Info("scheduler stopped")
	return nil
}
