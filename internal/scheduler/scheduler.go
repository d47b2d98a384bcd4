package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"opsconsole/internal/models"
	"opsconsole/internal/syncs"
)

// Syncer starts sync runs. *syncs.Runner implements it.
type Syncer interface {
	Run(ctx context.Context, kind, trigger string) (*syncs.Result, error)
	RunAll(ctx context.Context, trigger string) ([]*syncs.Result, error)
}

// Scheduler fires scheduled runs. An entry never overlaps itself: a firing
// while the previous run of the same entry is active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	syncer Syncer
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a stopped Scheduler.
func New(syncer Syncer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
		syncer: syncer,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers every enabled, valid schedule and returns how many were
// added. Invalid schedules are logged and skipped.
func (s *Scheduler) Add(schedules ...Schedule) int {
	added := 0
	for _, sched := range schedules {
		if sched.Disabled {
			s.logger.Info("schedule disabled", "schedule", sched.Name)
			continue
		}
		if err := sched.Validate(); err != nil {
			s.logger.Error("schedule skipped", "schedule", sched.Name, "error", err)
			continue
		}

		current := sched
		id, err := s.cron.AddFunc(current.Cron, func() { s.runSchedule(current) })
		if err != nil {
			s.logger.Error("schedule skipped", "schedule", sched.Name, "error", err)
			continue
		}
		s.logger.Info("schedule added", "schedule", current.Name, "kind", current.Kind, "cron", current.Cron, "entry", id)
		added++
	}
	return added
}

// Entries returns the registered entries.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing new runs and waits for active ones until ctx is done,
// then cancels them. Their run logs still reach a terminal status.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, canceling active runs")
	}
	s.cancel()
}

func (s *Scheduler) runSchedule(sched Schedule) {
	start := time.Now()
	logger := s.logger.With("schedule", sched.Name, "kind", sched.Kind)
	logger.Info("scheduled run started")

	if sched.Kind == KindAll {
		results, err := s.syncer.RunAll(s.ctx, models.TriggerScheduled)
		if err != nil {
			logger.Error("scheduled run failed", "error", err, "kinds", len(results), "elapsed", time.Since(start))
			return
		}
		logger.Info("scheduled run finished", "kinds", len(results), "elapsed", time.Since(start))
		return
	}

	res, err := s.syncer.Run(s.ctx, sched.Kind, models.TriggerScheduled)
	if err != nil {
		logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
		return
	}
	logger.Info("scheduled run finished",
		"run", res.RunID, "created", res.Created, "updated", res.Updated,
		"errors", len(res.Errors), "elapsed", time.Since(start))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
