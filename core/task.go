package core

import (
	"context"
	"time"

	"github.com/Swind/go-conformance-runner/matcher"
)

// Work is the unit of execution handed to the worker pool (Closure)
type Work func(ctx context.Context)

// =============================================================================
// Task: one conformance case
// =============================================================================

// Task is an immutable conformance case produced by the loader.
type Task struct {
	// SequenceID is the 1-based position among loaded tasks.
	SequenceID int

	// CorrelationID is unique per loaded task and ties together the log
	// lines of all its attempts.
	CorrelationID string

	// Type is a free-form label used only for metrics grouping.
	Type string

	Pattern  string
	Input    string
	Expected []matcher.Span
}

// Attempt records one evaluation of a task.
type Attempt struct {
	Index    int
	Result   matcher.MatchResult
	Outcome  matcher.Outcome
	Duration time.Duration
}

// TaskRun is the ordered list of attempts made for one task.
type TaskRun struct {
	Task     Task
	Attempts []Attempt
}

// Terminal returns the outcome of the last attempt. A run without attempts
// is a failure.
func (r TaskRun) Terminal() matcher.Outcome {
	if len(r.Attempts) == 0 {
		return matcher.Failed("no attempts")
	}
	return r.Attempts[len(r.Attempts)-1].Outcome
}

// Passed reports whether the terminal outcome is Pass.
func (r TaskRun) Passed() bool {
	return r.Terminal().IsPass()
}

// LastResult returns the spans produced by the last attempt.
func (r TaskRun) LastResult() matcher.MatchResult {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1].Result
}

// Summary aggregates the terminal outcomes of a batch.
type Summary struct {
	Loaded int
	Passed int
	Failed int

	// Failures holds the failed runs ordered by SequenceID.
	Failures []TaskRun
}
