// Package scheduler runs the portal's periodic maintenance jobs on cron
// schedules.
//
// Jobs:
//   - subscriptions.expire_due: downgrades lapsed paid plans of users who
//     have not made a request since their subscription ended
//   - sessions.prune_expired: deletes expired session rows
//
// Schedules are evaluated in the portal's civil timezone (UTC-3).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/service"
)

// Job names, also used as metric labels.
const (
	JobExpireSubscriptions = "subscriptions.expire_due"
	JobPruneSessions       = "sessions.prune_expired"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 2 * time.Minute

// RunFunc is one job run. It returns the number of rows it changed.
type RunFunc func(ctx context.Context) (int64, error)

// Scheduler wraps a cron runner with logging, metrics and panic recovery.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	jobs    map[string]RunFunc
}

// New creates a Scheduler. Jobs must be added before Start.
func New(timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(clock.Location)),
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[string]RunFunc),
	}
}

// Add registers a job on a standard five-field cron spec or a descriptor
// such as "@hourly".
func (s *Scheduler) Add(name, spec string, run RunFunc) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(context.Background(), name) }); err != nil {
		return fmt.Errorf("scheduler: job %q spec %q: %w", name, spec, err)
	}
	s.jobs[name] = run
	s.logger.Debug("registered scheduled job", "job", name, "spec", spec)
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops scheduling new runs and waits for running jobs to finish or
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, jobs still running")
	}
}

// Run executes a registered job once. A panic in the job is recovered and
// counted as a failure. Unknown names are logged and ignored.
func (s *Scheduler) Run(ctx context.Context, name string) {
	run, ok := s.jobs[name]
	if !ok {
		s.logger.Error("unknown scheduled job", "job", name)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	affected, err := s.safeRun(ctx, name, run)
	duration := time.Since(start)

	if err != nil {
		metrics.JobFailed(name, duration)
		s.logger.Error("scheduled job failed",
			"job", name,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}

	metrics.JobCompleted(name, duration, affected)
	s.logger.Info("scheduled job completed",
		"job", name,
		"duration_ms", duration.Milliseconds(),
		"affected", affected,
	)
}

func (s *Scheduler) safeRun(ctx context.Context, name string, run RunFunc) (affected int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()
	return run(ctx)
}

// =============================================================================
// Jobs
// =============================================================================

// ExpireSubscriptions downgrades every lapsed paid plan.
func ExpireSubscriptions(subs service.SubscriptionService) RunFunc {
	return func(ctx context.Context) (int64, error) {
		n, err := subs.ExpireDue(ctx)
		return int64(n), err
	}
}

// PruneSessions deletes expired sessions.
func PruneSessions(sessions service.SessionService) RunFunc {
	return sessions.PruneExpired
}
