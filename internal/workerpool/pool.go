// Package workerpool runs blocking work on a fixed number of slots.
//
// Submissions beyond the pool size queue in FIFO order on a weighted
// semaphore instead of failing. Each submission returns a Future the caller
// awaits, so control loops never perform the blocking call themselves.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"mediaflow/internal/logging"
)

var (
	// ErrClosed is returned by Submit after Shutdown has been called.
	ErrClosed = errors.New("worker pool closed")
	// ErrPanic marks work that panicked; the panic value is in the message.
	ErrPanic = errors.New("worker panicked")
)

// Pool bounds the number of concurrently running work units.
type Pool struct {
	size    int
	sem     *semaphore.Weighted
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	active  atomic.Int64
	waiting atomic.Int64
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Size    int `json:"size"`
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
}

// New creates a pool with size slots. Sizes below one are raised to one.
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:   size,
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logging.NewComponentLogger(logger, "workerpool"),
	}
}

// Size returns the configured slot count.
func (p *Pool) Size() int { return p.size }

// Stats reports slot usage.
func (p *Pool) Stats() Stats {
	return Stats{Size: p.size, Active: int(p.active.Load()), Waiting: int(p.waiting.Load())}
}

// Future is the pending result of submitted work.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the work has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the work finishes or ctx ends. A ctx error does not stop
// the running work.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on the pool. It blocks while every slot is busy and
// returns once fn has been handed a slot, or when ctx ends first.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (*Future[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		p.wg.Done()
		return nil, fmt.Errorf("acquire worker: %w", err)
	}

	future := &Future[T]{done: make(chan struct{})}
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer p.active.Add(-1)
		defer close(future.done)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("work panicked",
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
					logging.String(logging.FieldEventType, "worker_panic"),
				)
				future.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		future.value, future.err = fn(ctx)
	}()
	return future, nil
}

// Do submits fn and waits for its result.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	future, err := Submit(ctx, p, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return future.Wait(ctx)
}

// Shutdown rejects new work and waits for queued and running work to finish
// or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
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
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
