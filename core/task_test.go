package core

import (
	"testing"

	"github.com/Swind/go-conformance-runner/matcher"
)

// TestTaskRun_TerminalIsLastAttempt verifies the terminal outcome and result
// Given: A run whose first attempt failed and second attempt passed
// When: Terminal, Passed and LastResult are called
// Then: They reflect the second attempt only
func TestTaskRun_TerminalIsLastAttempt(t *testing.T) {
	// Arrange
	run := TaskRun{
		Task: Task{SequenceID: 1, Type: "digit"},
		Attempts: []Attempt{
			{Index: 0, Outcome: matcher.Failed("engine error: fault")},
			{Index: 1, Result: matcher.MatchResult{{Start: 1, End: 2}}, Outcome: matcher.Passed()},
		},
	}

	// Act and Assert
	if !run.Passed() {
		t.Fatalf("Passed() = false, want true (terminal %v)", run.Terminal())
	}
	if got := run.LastResult().String(); got != "(1,2)" {
		t.Errorf("LastResult() = %s, want (1,2)", got)
	}
}

func TestTaskRun_EmptyRun(t *testing.T) {
	var run TaskRun

	if run.Passed() {
		t.Error("Passed() = true for a run without attempts, want false")
	}
	if run.LastResult() != nil {
		t.Errorf("LastResult() = %v, want nil", run.LastResult())
	}
}
