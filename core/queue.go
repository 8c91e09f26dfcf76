package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// TaskQueue defines the interface for pending work storage
type TaskQueue interface {
	Push(w Work)
	Pop() (Work, bool)
	Len() int
	IsEmpty() bool
	Clear() int // Clear all work from the queue, returning how many items were dropped
}

// =============================================================================
// FIFOTaskQueue: slice-backed FIFO queue
// =============================================================================

type FIFOTaskQueue struct {
	mu    sync.Mutex
	items []Work
}

var _ TaskQueue = (*FIFOTaskQueue)(nil)

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{
		items: make([]Work, 0, defaultQueueCap),
	}
}

func (q *FIFOTaskQueue) Push(w Work) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, w)
}

func (q *FIFOTaskQueue) Pop() (Work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = nil
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *FIFOTaskQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]Work, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Work, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all work from the queue and releases references
func (q *FIFOTaskQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.items)
	q.items = make([]Work, 0, defaultQueueCap)
	return dropped
}
