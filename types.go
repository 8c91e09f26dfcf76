package conformance

import (
	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

// Re-export commonly used types so callers can import only this package.

// Task is one conformance case
type Task = core.Task

// TaskRun is the list of attempts made for one task
type TaskRun = core.TaskRun

// Summary aggregates the terminal outcomes of a batch
type Summary = core.Summary

// Span is a half-open byte range
type Span = matcher.Span

// MatchResult is the ordered span sequence produced for an input
type MatchResult = matcher.MatchResult

// Outcome is the pass/fail verdict of one attempt
type Outcome = matcher.Outcome

// RetryPolicy controls attempts and backoff per task
type RetryPolicy = core.RetryPolicy

// Logger is the logging interface used by every component
type Logger = core.Logger

var (
	DefaultRetryPolicy = core.DefaultRetryPolicy
	FormatSpans        = matcher.FormatSpans
)
