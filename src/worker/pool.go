package worker

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
)

// ErrBusy is returned when every worker is busy and the queue is full.
var ErrBusy = errors.New("agent busy")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is one unit of work. It runs on a worker goroutine.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool with a bounded queue (strict
// back-pressure: Submit never blocks).
type Pool struct {
	mu     sync.RWMutex
	jobs   chan job
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx  context.Context
	task Task
}

// New creates a worker pool. Size defaults to NumCPU when size<=0 and the
// queue to one slot when queue<=0.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				if err := j.ctx.Err(); err != nil {
					log.Printf("worker %d: skipping job whose caller is gone: %v", id, err)
					continue
				}
				j.task(j.ctx)
			}
		}(i)
	}
}

// Submit enqueues task if the queue has room. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, task: task}:
		return true
	default:
		return false
	}
}

// Do runs fn on the pool and waits for it. It returns ErrBusy when the job
// is dropped and ctx.Err() when the caller gives up first; fn itself is
// not interrupted.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	ok := p.Submit(ctx, func(ctx context.Context) {
		done <- fn(ctx)
	})
	if !ok {
		if p.isClosed() {
			return ErrClosed
		}
		return ErrBusy
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
