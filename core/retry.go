package core

import (
	"context"
	"time"

	"github.com/Swind/go-conformance-runner/matcher"
)

// =============================================================================
// Retry Policy
// =============================================================================

// RetryPolicy defines how often a failing task is attempted again and how
// long to wait in between.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retry, 1 = one retry)
	MaxRetries int

	// BaseDelay is the backoff unit. The delay grows linearly:
	// - Retry 1 delay: BaseDelay
	// - Retry 2 delay: 2 * BaseDelay
	// - Retry 3 delay: 3 * BaseDelay (capped by MaxDelay)
	BaseDelay time.Duration

	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns two retries with a 100ms backoff unit
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
	}
}

// NoRetry returns a retry policy with no retries
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Delay returns the wait before retry number attempt.
// attempt is 0-indexed (0 = first retry, 1 = second retry, etc.)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 0 {
		return 0
	}

	delay := p.BaseDelay * time.Duration(attempt+1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// SleepFunc suspends the caller for d. It returns early with the context
// error when ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Executor: retrying evaluation of one task
// =============================================================================

// Executor evaluates a task up to MaxRetries+1 times, recording every
// attempt's outcome as it happens.
type Executor struct {
	evaluator Evaluator
	metrics   Metrics
	logger    Logger
	policy    RetryPolicy
	sleep     SleepFunc
}

var _ Runner = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryPolicy sets the retry policy. Negative MaxRetries is treated as 0.
func WithRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		if policy.MaxRetries < 0 {
			policy.MaxRetries = 0
		}
		e.policy = policy
	}
}

// WithSleep replaces the backoff sleep, e.g. with a fake clock in tests.
func WithSleep(sleep SleepFunc) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithExecutorLogger sets the logger used for per-attempt logs.
func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an Executor. A nil metrics sink records nothing.
func NewExecutor(evaluator Evaluator, metrics Metrics, opts ...ExecutorOption) *Executor {
	if evaluator == nil {
		panic("Executor: evaluator must not be nil")
	}
	if metrics == nil {
		metrics = &NilMetrics{}
	}

	e := &Executor{
		evaluator: evaluator,
		metrics:   metrics,
		logger:    NewNoOpLogger(),
		policy:    DefaultRetryPolicy(),
		sleep:     SleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the retry policy in effect.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Run performs the attempts of task in sequence and returns them.
//
// The first passing attempt ends the run. Each failed attempt is counted
// before the backoff, so counters reflect attempts already made even while a
// task is still sleeping. A cancelled ctx ends the backoff early and the run
// terminates with its last failure.
func (e *Executor) Run(ctx context.Context, task Task) TaskRun {
	run := TaskRun{
		Task:     task,
		Attempts: make([]Attempt, 0, e.policy.MaxRetries+1),
	}

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		e.logger.Debug("Attempt started",
			F("correlationID", task.CorrelationID),
			F("sequenceID", task.SequenceID),
			F("attempt", attempt),
			F("taskType", task.Type),
			F("pattern", task.Pattern))

		begin := time.Now()
		result, outcome := e.evaluator.Evaluate(task.Pattern, task.Input, task.Expected)
		duration := time.Since(begin)

		e.metrics.RecordAttemptDuration(task.Type, duration)
		run.Attempts = append(run.Attempts, Attempt{
			Index:    attempt,
			Result:   result,
			Outcome:  outcome,
			Duration: duration,
		})

		if outcome.IsPass() {
			e.metrics.RecordSuccess(task.Type)
			e.logger.Info("Task passed",
				F("correlationID", task.CorrelationID),
				F("sequenceID", task.SequenceID),
				F("attempt", attempt),
				F("taskType", task.Type))
			return run
		}

		e.metrics.RecordFailure(task.Type)
		e.logger.Warn("Attempt failed",
			F("correlationID", task.CorrelationID),
			F("sequenceID", task.SequenceID),
			F("attempt", attempt),
			F("maxRetries", e.policy.MaxRetries),
			F("taskType", task.Type),
			F("reason", outcome.Reason))

		if attempt < e.policy.MaxRetries {
			delay := e.policy.Delay(attempt)
			if err := e.sleep(ctx, delay); err != nil {
				e.logger.Warn("Retry abandoned",
					F("correlationID", task.CorrelationID),
					F("attempt", attempt+1),
					F("error", err))
				break
			}
		}
	}

	e.logger.Error("Task failed after all attempts",
		F("correlationID", task.CorrelationID),
		F("sequenceID", task.SequenceID),
		F("taskType", task.Type),
		F("totalAttempts", len(run.Attempts)),
		F("reason", run.Terminal().Reason))
	e.logger.Debug("Span diff (-expected +got)",
		F("correlationID", task.CorrelationID),
		F("diff", matcher.Diff(task.Expected, run.LastResult())))
	return run
}
