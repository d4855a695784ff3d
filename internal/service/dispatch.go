package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/timmy/memebot/internal/logger"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Dispatcher runs jobs on a fixed number of workers fed by a bounded queue.
type Dispatcher struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &Dispatcher{jobs: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				job()
			}
		}()
	}
	return d
}

// Submit queues job, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, job func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch runs fn on d and waits for its result or for ctx to end. Once
// queued, fn runs to completion even if the caller stops waiting; it gets
// a context that keeps ctx's values but not its cancellation.
func Dispatch[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	jobCtx := context.WithoutCancel(ctx)

	err := d.Submit(ctx, func() {
		defer func() {
			if p := recover(); p != nil {
				logger.FromContext(jobCtx).Errorf("Dispatched job panicked: %v", p)
				done <- result{err: fmt.Errorf("job panicked: %v", p)}
			}
		}()
		v, err := fn(jobCtx)
		done <- result{value: v, err: err}
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
