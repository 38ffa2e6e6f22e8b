// Package scheduler runs the periodic lifecycle jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PiperEve/BlueGhost/internal/expiry"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

// Job names registered by RegisterLifecycle.
const (
	JobReconcile    = "reconcile"
	JobMonthlyReset = "monthly-reset"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 30 * time.Second

// Job is one scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages cron jobs. A job that is still running when its next
// run is due is skipped, not queued.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
	loc     *time.Location
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a scheduler evaluating specs in loc (UTC when nil).
func New(loc *time.Location, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		cron:    c,
		jobs:    make(map[string]cron.EntryID),
		loc:     loc,
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
	}
}

// AddJob registers job under name with a standard five-field spec or a
// descriptor such as "@every 5m". Re-adding a name replaces the old entry.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		if err := s.run(name, job); err != nil {
			s.logger.Warn("job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = id
	s.logger.Info("job added", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("job started", "job", name)
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Debug("job finished", "job", name, "elapsed", time.Since(start))
	return nil
}

// RemoveJob unregisters a job. Unknown names are ignored.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
		s.logger.Info("job removed", "job", name)
	}
}

// RunNow runs a job synchronously with the scheduler's timeout.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler starting", "location", s.loc.String())
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// Jobs lists registered jobs by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, id := range s.jobs {
		e := s.cron.Entry(id)
		infos = append(infos, JobInfo{Name: name, NextRun: e.Next, LastRun: e.Prev})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Lifecycle is the part of the facade the scheduler drives.
type Lifecycle interface {
	Tick(ctx context.Context) (expiry.Report, error)
	MonthlyReset(ctx context.Context) (rewind.ResetResult, error)
}

// RegisterLifecycle adds the reconcile and monthly-reset jobs.
func RegisterLifecycle(s *Scheduler, lc Lifecycle, reconcileSpec, resetSpec string) error {
	err := s.AddJob(JobReconcile, reconcileSpec, func(ctx context.Context) error {
		report, err := lc.Tick(ctx)
		if err != nil {
			return err
		}
		if report.Changed {
			s.logger.Info("reconciled",
				"resolved", len(report.Resolved),
				"expired_posts", len(report.ExpiredPosts),
				"dropped_battles", len(report.DroppedBattles),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.AddJob(JobMonthlyReset, resetSpec, func(ctx context.Context) error {
		res, err := lc.MonthlyReset(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("monthly reset", "month", res.MonthKey, "users", len(res.Users), "purged", res.Purged)
		return nil
	})
}
