package core

import "sync"

const defaultRunHistoryCapacity = 100

// runHistory keeps the most recent terminal runs in a fixed ring.
type runHistory struct {
	mu    sync.Mutex
	items []TaskRun
	head  int
	count int
}

func newRunHistory(capacity int) *runHistory {
	if capacity < 1 {
		capacity = defaultRunHistoryCapacity
	}
	return &runHistory{items: make([]TaskRun, capacity)}
}

func (h *runHistory) Add(run TaskRun) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = run
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit runs, newest first. limit <= 0 returns all kept runs.
func (h *runHistory) Recent(limit int) []TaskRun {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}
	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskRun, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *runHistory) Last() (TaskRun, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskRun{}, false
	}
	return h.items[(h.head-1+len(h.items))%len(h.items)], true
}

func (h *runHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.items)
	h.head = 0
	h.count = 0
}
