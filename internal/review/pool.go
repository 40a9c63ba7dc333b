package review

import (
	"context"
	"fmt"
	"sync"
)

// Pool is a bounded worker pool for the commit-and-advance work that runs
// after the synchronous acknowledgment. Failures inside a task are the
// task's own responsibility to surface (as a replacement card); the pool
// only guarantees the work is tracked, not detached.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines draining the task queue.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		tasks: make(chan func(), workers*16),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit enqueues a task. Blocks when the queue is full; returns an error
// only after Shutdown.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("pool is shut down")
	}
	p.tasks <- task
	return nil
}

// Shutdown stops accepting tasks and waits for in-flight work to drain,
// or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool shutdown: %w", ctx.Err())
	}
}
