package conformance

import (
	"context"
	"io"
	"iter"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/loader"
	"github.com/Swind/go-conformance-runner/matcher"
)

// DefaultMaxConcurrency is the number of tasks run at once unless configured.
const DefaultMaxConcurrency = 5

// Options wires the components of a Runner. A zero MaxConcurrency and nil
// collaborators take defaults.
type Options struct {
	MaxConcurrency int
	Retry          RetryPolicy

	// Engine compiles patterns; nil selects coregex.
	Engine matcher.Engine

	Metrics core.Metrics
	Logger  core.Logger
	Sink    core.ResultSink

	// Sleep waits between attempts; nil waits on a timer.
	Sleep core.SleepFunc

	// PoolName labels the worker pool in logs and stats.
	PoolName string
}

// DefaultOptions returns 5 workers, 2 retries and a 100ms backoff unit.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: DefaultMaxConcurrency,
		Retry:          core.DefaultRetryPolicy(),
	}
}

// Runner wires loader, evaluator, executor and scheduler for one configuration.
type Runner struct {
	maxConcurrency int
	logger         core.Logger
	executor       *core.Executor
	scheduler      *core.Scheduler
}

// NewRunner builds a Runner from opts.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = core.NewNoOpLogger()
	}

	execOpts := []core.ExecutorOption{
		core.WithRetryPolicy(opts.Retry),
		core.WithExecutorLogger(opts.Logger),
	}
	if opts.Sleep != nil {
		execOpts = append(execOpts, core.WithSleep(opts.Sleep))
	}
	executor := core.NewExecutor(matcher.NewEvaluator(opts.Engine), opts.Metrics, execOpts...)

	schedOpts := []core.SchedulerOption{
		core.WithSchedulerName(opts.PoolName),
		core.WithSchedulerLogger(opts.Logger),
	}
	if opts.Sink != nil {
		schedOpts = append(schedOpts, core.WithResultSink(opts.Sink))
	}

	return &Runner{
		maxConcurrency: opts.MaxConcurrency,
		logger:         opts.Logger,
		executor:       executor,
		scheduler:      core.NewScheduler(executor, schedOpts...),
	}
}

// Scheduler exposes the scheduler, mainly so its Stats can be polled.
func (r *Runner) Scheduler() *core.Scheduler {
	return r.scheduler
}

// Run loads tasks from src and runs them all.
func (r *Runner) Run(ctx context.Context, src io.ReadSeeker) (Summary, error) {
	l := loader.New(src, loader.WithLogger(r.logger))
	return r.RunTasks(ctx, l.Tasks())
}

// RunTasks runs an already loaded task sequence.
func (r *Runner) RunTasks(ctx context.Context, tasks iter.Seq2[Task, error]) (Summary, error) {
	r.logger.Info("Starting conformance run",
		core.F("maxConcurrency", r.maxConcurrency),
		core.F("maxRetries", r.executor.Policy().MaxRetries))
	return r.scheduler.RunAll(ctx, tasks, r.maxConcurrency)
}
