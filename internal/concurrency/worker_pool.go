package concurrency

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrQueueFull  = errors.New("worker pool queue full")
)

// Pool runs submitted tasks on a fixed number of workers. Submit never blocks
// so callers on an event loop stay responsive.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func(context.Context)
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts concurrency workers with room for queue pending tasks.
// Tasks receive a context that is cancelled when ctx ends or the pool closes.
func NewPool(ctx context.Context, concurrency, queue int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan func(context.Context), queue),
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task(p.ctx)
	}
}

// Submit queues task.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting work, cancels the task context and waits for the
// workers to drain the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
