package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// WorkerPool manages a fixed set of worker goroutines pulling Work from a
// shared FIFO queue. The number of workers bounds how much work runs at once.
type WorkerPool struct {
	id           string
	workers      int
	queue        TaskQueue
	signal       chan struct{}
	panicHandler PanicHandler

	metricQueued atomic.Int32 // Waiting in queue
	metricActive atomic.Int32 // Executing in worker

	// Lifecycle
	shuttingDown atomic.Bool
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	runningMu    sync.RWMutex
}

// NewWorkerPool creates a pool with the given number of workers.
// A nil panicHandler logs nothing.
func NewWorkerPool(id string, workers int, panicHandler PanicHandler) *WorkerPool {
	if workers < 1 {
		panic("WorkerPool: workers must be at least 1")
	}
	if panicHandler == nil {
		panicHandler = &DefaultPanicHandler{}
	}
	return &WorkerPool{
		id:           id,
		workers:      workers,
		queue:        NewFIFOTaskQueue(),
		signal:       make(chan struct{}, workers*2),
		panicHandler: panicHandler,
	}
}

// Start starts all worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}
}

// Stop rejects new work, drops queued work and waits for running work to finish.
func (p *WorkerPool) Stop() {
	p.Shutdown()

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()
}

// Shutdown stops accepting new work and clears the queue. It returns the
// number of queued items that will never run. Running work is not interrupted.
func (p *WorkerPool) Shutdown() int {
	p.shuttingDown.Store(true)
	dropped := p.queue.Clear()
	p.metricQueued.Add(-int32(dropped))
	return dropped
}

// Post queues w for execution. It returns false if the pool is shutting down.
func (p *WorkerPool) Post(w Work) bool {
	if p.shuttingDown.Load() {
		return false
	}

	p.queue.Push(w)
	p.metricQueued.Add(1)

	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full, but work is already queued
	}
	return true
}

// GetWork blocks until work is available or stopCh is closed.
func (p *WorkerPool) GetWork(stopCh <-chan struct{}) (Work, bool) {
	for {
		if w, ok := p.queue.Pop(); ok {
			p.metricQueued.Add(-1)
			return w, true
		}

		select {
		case <-p.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// workerLoop is the main loop for each worker
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		w, ok := p.GetWork(stopCh)
		if !ok {
			return
		}

		p.metricActive.Add(1)
		func() {
			defer func() {
				p.metricActive.Add(-1)
				if r := recover(); r != nil {
					p.panicHandler.HandlePanic(ctx, id, r, debug.Stack())
				}
			}()
			w(ctx)
		}()
	}
}

// Join waits for all worker goroutines to finish
func (p *WorkerPool) Join() {
	p.wg.Wait()
}

// ID returns the ID of the pool
func (p *WorkerPool) ID() string {
	return p.id
}

// IsRunning returns whether the pool is running
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

func (p *WorkerPool) WorkerCount() int     { return p.workers }
func (p *WorkerPool) QueuedTaskCount() int { return int(p.metricQueued.Load()) }
func (p *WorkerPool) ActiveTaskCount() int { return int(p.metricActive.Load()) }

// Stats returns current observability data for this pool.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ID:      p.id,
		Workers: p.workers,
		Queued:  p.QueuedTaskCount(),
		Active:  p.ActiveTaskCount(),
		Running: p.IsRunning(),
	}
}
