package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-conformance-runner/matcher"
)

const (
	// maxAllowedConcurrency is the maximum allowed value for maxConcurrency parameter.
	// Values higher than this could lead to excessive goroutine creation and memory exhaustion.
	maxAllowedConcurrency = 10000
)

// ErrInvalidConcurrency is returned by RunAll for a concurrency limit outside [1, 10000].
var ErrInvalidConcurrency = errors.New("invalid max concurrency")

// Scheduler runs a batch of tasks with at most maxConcurrency runs in flight.
//
// Tasks are admitted in arrival order. Each admitted task is driven to its
// terminal outcome by the Runner; a failing task never aborts the batch.
type Scheduler struct {
	runner       Runner
	name         string
	logger       Logger
	panicHandler PanicHandler
	sink         ResultSink
	history      *runHistory

	pool atomic.Pointer[WorkerPool]
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerName sets the pool id reported by Stats.
func WithSchedulerName(name string) SchedulerOption {
	return func(s *Scheduler) {
		if name != "" {
			s.name = name
		}
	}
}

// WithSchedulerLogger sets the logger for batch-level events.
func WithSchedulerLogger(logger Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPanicHandler sets the handler for panics escaping a task run.
func WithPanicHandler(handler PanicHandler) SchedulerOption {
	return func(s *Scheduler) {
		if handler != nil {
			s.panicHandler = handler
		}
	}
}

// WithResultSink publishes every terminal run to sink.
func WithResultSink(sink ResultSink) SchedulerOption {
	return func(s *Scheduler) {
		s.sink = sink
	}
}

// WithHistoryCapacity sets how many recent runs Recent can return.
func WithHistoryCapacity(capacity int) SchedulerOption {
	return func(s *Scheduler) {
		s.history = newRunHistory(capacity)
	}
}

// NewScheduler creates a Scheduler driving tasks through runner.
func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	if runner == nil {
		panic("Scheduler: runner must not be nil")
	}

	s := &Scheduler{
		runner: runner,
		name:   "conformance",
		logger: NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = newRunHistory(defaultRunHistoryCapacity)
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	return s
}

// Stats returns the state of the pool of the batch in progress, or of the
// last finished batch.
func (s *Scheduler) Stats() PoolStats {
	if pool := s.pool.Load(); pool != nil {
		return pool.Stats()
	}
	return PoolStats{ID: s.name}
}

// Recent returns up to limit terminal runs of the current or last batch,
// most recently finished first.
func (s *Scheduler) Recent(limit int) []TaskRun {
	return s.history.Recent(limit)
}

// LastRun returns the most recently finished run.
func (s *Scheduler) LastRun() (TaskRun, bool) {
	return s.history.Last()
}

// RunAll admits tasks in order and waits until every admitted task reached a
// terminal outcome.
//
// A task sequence error, a cancelled ctx or an invalid limit aborts the
// batch: no further tasks are admitted, queued tasks are dropped, runs in
// flight are awaited, and the error is returned together with the partial
// summary.
func (s *Scheduler) RunAll(ctx context.Context, tasks iter.Seq2[Task, error], maxConcurrency int) (Summary, error) {
	if maxConcurrency < 1 || maxConcurrency > maxAllowedConcurrency {
		return Summary{}, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidConcurrency, maxConcurrency, maxAllowedConcurrency)
	}

	s.history.Reset()
	pool := NewWorkerPool(s.name, maxConcurrency, s.panicHandler)
	s.pool.Store(pool)
	pool.Start(ctx)
	defer pool.Stop()

	agg := &aggregator{}
	var wg sync.WaitGroup
	var runErr error

	abort := func(err error) {
		if runErr == nil {
			runErr = err
		}
		for range pool.Shutdown() {
			wg.Done()
		}
	}

	for task, err := range tasks {
		if err != nil {
			abort(fmt.Errorf("load tasks: %w", err))
			break
		}
		if ctx.Err() != nil {
			abort(ctx.Err())
			break
		}

		agg.admit()
		wg.Add(1)
		if !pool.Post(s.work(task, agg, wg.Done)) {
			wg.Done()
			abort(errors.New("worker pool is shut down"))
			break
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		abort(ctx.Err())
		<-done
	}

	summary := agg.summary()
	if runErr != nil {
		s.logger.Error("Run aborted",
			F("loaded", summary.Loaded),
			F("passed", summary.Passed),
			F("failed", summary.Failed),
			F("error", runErr))
		return summary, fmt.Errorf("run aborted: %w", runErr)
	}

	s.logger.Info("All tasks complete",
		F("loaded", summary.Loaded),
		F("passed", summary.Passed),
		F("failed", summary.Failed))
	return summary, nil
}

// work wraps one task run. The deferred bookkeeping also runs when the task
// panics, so a panicking run is counted as failed before the worker recovers.
func (s *Scheduler) work(task Task, agg *aggregator, done func()) Work {
	return func(ctx context.Context) {
		completed := false
		defer func() {
			if !completed {
				run := TaskRun{
					Task:     task,
					Attempts: []Attempt{{Outcome: matcher.Failed("panic during task run")}},
				}
				agg.record(run)
				s.history.Add(run)
			}
			done()
		}()

		run := s.runner.Run(ctx, task)
		completed = true
		agg.record(run)
		s.history.Add(run)

		if s.sink != nil {
			if err := s.sink.Publish(ctx, run); err != nil {
				s.logger.Warn("Publishing task result failed",
					F("correlationID", task.CorrelationID),
					F("error", err))
			}
		}
	}
}

// aggregator folds terminal runs into a Summary.
type aggregator struct {
	mu       sync.Mutex
	loaded   int
	passed   int
	failures []TaskRun
}

func (a *aggregator) admit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loaded++
}

func (a *aggregator) record(run TaskRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if run.Passed() {
		a.passed++
		return
	}
	a.failures = append(a.failures, run)
}

func (a *aggregator) summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	failures := slices.Clone(a.failures)
	slices.SortFunc(failures, func(x, y TaskRun) int {
		return x.Task.SequenceID - y.Task.SequenceID
	})
	return Summary{
		Loaded:   a.loaded,
		Passed:   a.passed,
		Failed:   len(failures),
		Failures: failures,
	}
}
