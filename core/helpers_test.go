package core_test

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

// countingMetrics records outcome counts per task type.
type countingMetrics struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{successes: map[string]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) RecordSuccess(taskType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes[taskType]++
}

func (m *countingMetrics) RecordFailure(taskType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[taskType]++
}

func (m *countingMetrics) RecordAttemptDuration(taskType string, duration time.Duration) {}

func (m *countingMetrics) counts(taskType string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successes[taskType], m.failures[taskType]
}

// scriptedEvaluator returns the scripted outcomes in order, repeating the last one.
type scriptedEvaluator struct {
	mu       sync.Mutex
	outcomes []matcher.Outcome
	calls    int
}

func (e *scriptedEvaluator) Evaluate(pattern, input string, expected []matcher.Span) (matcher.MatchResult, matcher.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := min(e.calls, len(e.outcomes)-1)
	e.calls++
	return nil, e.outcomes[idx]
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func taskOf(seq int, taskType, pattern, input string, expected ...matcher.Span) core.Task {
	return core.Task{
		SequenceID:    seq,
		CorrelationID: "corr-" + taskType,
		Type:          taskType,
		Pattern:       pattern,
		Input:         input,
		Expected:      expected,
	}
}
