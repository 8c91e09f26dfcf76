package core

import "testing"

func runWithSeq(seq int) TaskRun {
	return TaskRun{Task: Task{SequenceID: seq}}
}

func TestRunHistory_RingOrder(t *testing.T) {
	h := newRunHistory(3)
	if _, ok := h.Last(); ok {
		t.Fatal("Last() on empty history ok = true, want false")
	}

	for seq := 1; seq <= 5; seq++ {
		h.Add(runWithSeq(seq))
	}

	recent := h.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("len(Recent(0)) = %d, want 3", len(recent))
	}
	for i, want := range []int{5, 4, 3} {
		if recent[i].Task.SequenceID != want {
			t.Errorf("Recent[%d] = %d, want %d", i, recent[i].Task.SequenceID, want)
		}
	}

	if got := h.Recent(1); len(got) != 1 || got[0].Task.SequenceID != 5 {
		t.Errorf("Recent(1) = %v, want run 5", got)
	}
	if last, ok := h.Last(); !ok || last.Task.SequenceID != 5 {
		t.Errorf("Last() = (%d, %v), want (5, true)", last.Task.SequenceID, ok)
	}

	h.Reset()
	if got := h.Recent(0); got != nil {
		t.Errorf("Recent after Reset = %v, want nil", got)
	}
}

func TestRunHistory_DefaultCapacity(t *testing.T) {
	h := newRunHistory(0)
	if len(h.items) != defaultRunHistoryCapacity {
		t.Errorf("capacity = %d, want %d", len(h.items), defaultRunHistoryCapacity)
	}
}
