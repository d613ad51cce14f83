package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type scheduledJob struct {
	spec string
	name string
	run  func(ctx context.Context) error
}

// SchedulerService is an in-process stand-in for the external trigger. It
// invokes registered jobs on cron schedules; overlapping runs of the same job
// are skipped. Duplicate sends across hosts are still prevented by the
// reminder lock, not by this scheduler.
type SchedulerService struct {
	logger  *slog.Logger
	timeout time.Duration
	jobs    []scheduledJob

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

// NewSchedulerService creates a new SchedulerService. timeout bounds each job
// run; zero means no bound.
func NewSchedulerService(logger *slog.Logger, timeout time.Duration) *SchedulerService {
	return &SchedulerService{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a job. It must be called before Start.
func (s *SchedulerService) Register(spec, name string, run func(ctx context.Context) error) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs = append(s.jobs, scheduledJob{spec: spec, name: name, run: run})
	return nil
}

// Start starts the scheduler
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	logger := cronLogger{s.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	for _, job := range s.jobs {
		if _, err := c.AddFunc(job.spec, s.wrap(ctx, job)); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

func (s *SchedulerService) wrap(ctx context.Context, job scheduledJob) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		runCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := job.run(runCtx); err != nil {
			s.logger.Error("scheduled job failed",
				"job", job.name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return
		}
		s.logger.Debug("scheduled job completed",
			"job", job.name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
