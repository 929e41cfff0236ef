// Package scheduler runs periodic maintenance jobs on a robfig/cron runner.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is one pass of a periodic task.
type Job func(ctx context.Context) error

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs jobs at fixed intervals. A run that is still in progress
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger logging.Logger) *Scheduler {
	logger = logger.With("module", "scheduler")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers job under name to run once per interval.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := job(s.ctx); err != nil {
			s.logger.Error(s.ctx, "scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", "jobs", len(s.cron.Entries()))

	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info(context.Background(), "scheduler stopped")
	return nil
}
