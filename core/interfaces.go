package core

import (
	"context"
	"time"

	"github.com/Swind/go-conformance-runner/matcher"
)

// =============================================================================
// Evaluator: single-attempt check of a task
// =============================================================================

// Evaluator runs one attempt of a task against the matching engine.
// *matcher.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(pattern, input string, expected []matcher.Span) (matcher.MatchResult, matcher.Outcome)
}

// Runner drives a task to its terminal outcome. *Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, task Task) TaskRun
}

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - workerID: The ID of the pool worker that ran the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewNoOpLogger()
	}
	logger.Error("task panic recovered",
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// =============================================================================
// Metrics: Interface for outcome counters
// =============================================================================

// Metrics receives per-attempt outcomes.
//
// Implementations must tolerate concurrent calls from every in-flight task
// without lost updates. Methods should be non-blocking and fast.
type Metrics interface {
	// RecordSuccess counts one passing attempt for taskType.
	RecordSuccess(taskType string)

	// RecordFailure counts one failing attempt for taskType.
	RecordFailure(taskType string)

	// RecordAttemptDuration records how long one attempt took.
	RecordAttemptDuration(taskType string, duration time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordSuccess is a no-op.
func (m *NilMetrics) RecordSuccess(taskType string) {}

// RecordFailure is a no-op.
func (m *NilMetrics) RecordFailure(taskType string) {}

// RecordAttemptDuration is a no-op.
func (m *NilMetrics) RecordAttemptDuration(taskType string, duration time.Duration) {}

// =============================================================================
// ResultSink: consumer of terminal task runs
// =============================================================================

// ResultSink receives every terminal TaskRun. Publish errors are logged by the
// scheduler and never abort the batch.
type ResultSink interface {
	Publish(ctx context.Context, run TaskRun) error
}
