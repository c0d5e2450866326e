// Package scheduler runs the job loop: every tick it finds jobs whose
// persisted next-run time has arrived, executes them, records the run,
// reports it, and advances the job to its next occurrence.
//
// Missed occurrences are coalesced: a job that was due while the
// daemon was down runs once on startup and then continues from the
// present, rather than replaying every missed slot.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/doughall/cronrun/internal/config"
	"github.com/doughall/cronrun/internal/cron"
	"github.com/doughall/cronrun/internal/executor"
	"github.com/doughall/cronrun/internal/history"
	"github.com/doughall/cronrun/internal/notify"
)

// runsKept bounds per-job run history; older runs are pruned after
// each append.
const runsKept = 100

// Runner executes one job invocation. Satisfied by executor.Executor.
type Runner interface {
	Run(ctx context.Context, spec executor.Spec) (*executor.Result, error)
}

// LoadGuard defers execution on an overloaded host. Satisfied by
// sysload.Guard.
type LoadGuard interface {
	TooLoaded(ctx context.Context) bool
}

// Scheduler owns the tick loop.
type Scheduler struct {
	jobs      []config.Job
	schedules map[string]*cron.Schedule
	store     *history.Store
	runner    Runner
	notifier  notify.Notifier
	guard     LoadGuard
	logger    *slog.Logger
	tick      time.Duration
	host      string
	now       func() time.Time

	mu       sync.Mutex
	lastTick time.Time

	wg sync.WaitGroup
}

// New builds a scheduler for the configured jobs. Every job's schedule
// parses here exactly once; config validation has already guaranteed
// they are well-formed.
func New(jobs []config.Job, tick time.Duration, store *history.Store, runner Runner, notifier notify.Notifier, guard LoadGuard, logger *slog.Logger) (*Scheduler, error) {
	schedules := make(map[string]*cron.Schedule, len(jobs))
	for _, job := range jobs {
		sched, err := cron.Parse(job.Schedule)
		if err != nil {
			return nil, err
		}
		schedules[job.Name] = sched
	}

	host, _ := os.Hostname()

	return &Scheduler{
		jobs:      jobs,
		schedules: schedules,
		store:     store,
		runner:    runner,
		notifier:  notifier,
		guard:     guard,
		logger:    logger.With(slog.String("component", "scheduler")),
		tick:      tick,
		host:      host,
		now:       time.Now,
	}, nil
}

// Run starts the scheduler loop (blocking). It reconciles persisted
// state with the config, then checks for due jobs immediately and on
// every tick. Intended to run in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.reconcileStates(); err != nil {
		s.logger.Error("failed to reconcile job state",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("scheduler started",
		slog.Int("jobs", len(s.jobs)),
		slog.Duration("tick", s.tick),
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Check immediately to catch jobs that came due while down.
	s.processDue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.processDue(ctx)
		}
	}
}

// reconcileStates aligns the history store with the config: jobs keep
// their persisted next-run time while their schedule text is
// unchanged, jobs with new or edited schedules restart from now, and
// state for jobs removed from the config is dropped.
func (s *Scheduler) reconcileStates() error {
	now := s.now()
	configured := make(map[string]bool, len(s.jobs))

	for _, job := range s.jobs {
		configured[job.Name] = true

		state, err := s.store.State(job.Name)
		if err != nil {
			return err
		}
		if state != nil && state.Schedule == job.Schedule {
			continue
		}

		state = &history.JobState{
			Name:     job.Name,
			Schedule: job.Schedule,
		}
		next, ok := s.schedules[job.Name].Next(now)
		if !ok {
			state.Disabled = true
			s.logger.Warn("job schedule can never occur, disabling",
				slog.String("job", job.Name),
				slog.String("schedule", job.Schedule),
			)
		} else {
			state.NextRunAt = next
		}
		if err := s.store.SaveState(state); err != nil {
			return err
		}
	}

	names, err := s.store.StateNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if !configured[name] {
			if err := s.store.DeleteState(name); err != nil {
				return err
			}
			s.logger.Info("dropped state for removed job",
				slog.String("job", name),
			)
		}
	}

	return nil
}

// processDue runs every job whose next-run time has arrived.
func (s *Scheduler) processDue(ctx context.Context) {
	s.mu.Lock()
	s.lastTick = s.now()
	s.mu.Unlock()

	if s.guard != nil && s.guard.TooLoaded(ctx) {
		// Defer, don't drop: due jobs stay due for the next tick.
		return
	}

	now := s.now()
	for _, job := range s.jobs {
		state, err := s.store.State(job.Name)
		if err != nil {
			s.logger.Error("failed to load job state",
				slog.String("job", job.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if state == nil || state.Disabled || state.NextRunAt.After(now) {
			continue
		}
		s.runJob(ctx, job, state)
	}
}

// runJob executes one due job, records and reports the outcome, and
// advances the job's next-run time.
func (s *Scheduler) runJob(ctx context.Context, job config.Job, state *history.JobState) {
	jobLogger := s.logger.With(slog.String("job", job.Name))

	if overdue := s.now().Sub(state.NextRunAt); overdue > s.tick {
		jobLogger.Info("running overdue job",
			slog.Duration("overdue", overdue),
		)
	} else {
		jobLogger.Info("executing job")
	}

	s.wg.Add(1)
	defer s.wg.Done()

	spec := executor.Spec{
		JobName:     job.Name,
		ScheduledAt: state.NextRunAt,
		Command:     job.Command,
		Script:      job.Script,
		Interpreter: job.Interpreter,
		Timeout:     time.Duration(job.TimeoutSeconds) * time.Second,
	}

	result, execErr := s.runner.Run(ctx, spec)

	run := &history.Run{
		Job:         job.Name,
		ScheduledAt: state.NextRunAt,
		StartedAt:   s.now(),
		ExitCode:    -1,
	}
	if execErr != nil {
		run.Error = execErr.Error()
		jobLogger.Warn("job execution failed",
			slog.String("error", execErr.Error()),
		)
	} else {
		run.StartedAt = result.StartedAt
		run.ExitCode = result.ExitCode
		run.DurationMs = result.DurationMs()
		run.TimedOut = result.TimedOut
		if keepOutput(job.OutputRetention, result) {
			run.Stdout = result.Stdout
			run.Stderr = result.Stderr
		}
		jobLogger.Info("job execution complete",
			slog.Int("exit_code", result.ExitCode),
			slog.Bool("timed_out", result.TimedOut),
			slog.Int64("duration_ms", result.DurationMs()),
		)
	}

	if err := s.store.AppendRun(run); err != nil {
		jobLogger.Error("failed to record run",
			slog.String("error", err.Error()),
		)
	} else if err := s.store.Prune(job.Name, runsKept); err != nil {
		jobLogger.Warn("failed to prune run history",
			slog.String("error", err.Error()),
		)
	}

	s.report(ctx, run, jobLogger)
	s.advance(job, state, jobLogger)
}

// keepOutput applies the job's output retention policy.
func keepOutput(policy string, result *executor.Result) bool {
	switch policy {
	case "on_failure":
		return !result.Success()
	case "never":
		return false
	default: // "always"
		return true
	}
}

// report sends the run to the configured notifier, if any.
func (s *Scheduler) report(ctx context.Context, run *history.Run, jobLogger *slog.Logger) {
	if s.notifier == nil {
		return
	}

	report := &notify.Report{
		Job:         run.Job,
		Host:        s.host,
		ScheduledAt: run.ScheduledAt,
		StartedAt:   run.StartedAt,
		ExitCode:    run.ExitCode,
		DurationMs:  run.DurationMs,
		TimedOut:    run.TimedOut,
		Error:       run.Error,
	}
	if err := s.notifier.NotifyRun(ctx, report); err != nil {
		jobLogger.Warn("run notification failed",
			slog.String("error", err.Error()),
		)
	}
}

// advance moves the job to its next occurrence, or disables it when
// the schedule is exhausted (a day-of-month its months can never
// reach).
func (s *Scheduler) advance(job config.Job, state *history.JobState, jobLogger *slog.Logger) {
	now := s.now()
	state.LastRunAt = now

	next, ok := s.schedules[job.Name].Next(now)
	if !ok {
		state.Disabled = true
		jobLogger.Warn("schedule has no further occurrences, disabling job")
	} else {
		state.NextRunAt = next
		jobLogger.Debug("next run scheduled",
			slog.Time("next_run_at", next),
		)
	}

	if err := s.store.SaveState(state); err != nil {
		jobLogger.Error("failed to save job state",
			slog.String("error", err.Error()),
		)
	}
}

// IsHealthy reports whether the loop has ticked recently; wired to the
// systemd watchdog.
func (s *Scheduler) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastTick.IsZero() && s.now().Sub(s.lastTick) < 3*s.tick
}

// Shutdown waits for any in-flight job to finish, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
