// Package worker runs per-student work on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

const defaultQueueMultiplier = 4 // queued tasks per worker

// task is one index of a Run batch.
type task struct {
	ctx  context.Context
	i    int
	fn   func(ctx context.Context, i int) error
	done func(i int, err error)
}

// Pool is a fixed set of workers fed from a bounded task queue. It satisfies
// policy.Runner. fn passed to Run must not call Run on the same pool.
type Pool struct {
	size      int
	queueSize int
	name      string
	tasks     chan task

	mu       sync.Mutex
	started  bool
	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of size workers. A size below one uses one worker
// per CPU.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size:     size,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queueSize == 0 {
		p.queueSize = size * defaultQueueMultiplier
	}
	p.tasks = make(chan task, p.queueSize)
	if p.name != "worker" {
		p.logger = p.logger.Named(p.name)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Start launches the workers. They stop when ctx is canceled or the pool
// is shut down. Calling Start again has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(ctx, p.logger.Named(strconv.Itoa(i)))
	}
	go func() {
		p.wg.Wait()
		metrics.UpdateWorkerActiveCount(0)
		close(p.done)
	}()
	metrics.UpdateWorkerActiveCount(p.size)
	p.logger.Debug(ctx, "worker pool started", logger.Int("workers", p.size), logger.Int("queue", p.queueSize))
}

func (p *Pool) work(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case t := <-p.tasks:
			p.process(t, log)
		}
	}
}

// process runs one task unless its batch was already canceled.
func (p *Pool) process(t task, log logger.Logger) {
	start := time.Now()
	err := t.ctx.Err()
	if err == nil {
		err = t.fn(t.ctx, t.i)
	}
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, context.Canceled) {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "task_error")
		log.Debug(t.ctx, "task failed", logger.Int("index", t.i), logger.Error(err))
	}
	t.done(t.i, err)
}

func (p *Pool) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}
	select {
	case <-p.done:
		return false
	case <-p.shutdown:
		return false
	default:
		return true
	}
}

// Run implements policy.Runner. The first failing index cancels the rest of
// the batch; the error returned is that of the lowest failing index.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	if !p.running() {
		return ErrStopped
	}

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b := newBatch(n, cancel)

enqueue:
	for i := 0; i < n; i++ {
		select {
		case p.tasks <- task{ctx: bctx, i: i, fn: fn, done: b.finish}:
		case <-bctx.Done():
			b.skip(n - i)
			break enqueue
		case <-p.done:
			return ErrStopped
		}
	}

	select {
	case <-b.finished:
	case <-p.done:
		select {
		case <-b.finished:
		default:
			return ErrStopped
		}
	}
	return b.err(ctx)
}

// Shutdown stops the workers and waits for them to exit. Queued tasks that
// never started are abandoned and their Run calls return ErrStopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.shutdown) })

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// batch tracks the outstanding tasks of one Run call.
type batch struct {
	mu        sync.Mutex
	remaining int
	errs      []error
	cancel    context.CancelFunc
	finished  chan struct{}
}

func newBatch(n int, cancel context.CancelFunc) *batch {
	return &batch{
		remaining: n,
		errs:      make([]error, n),
		cancel:    cancel,
		finished:  make(chan struct{}),
	}
}

func (b *batch) finish(i int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.errs[i] = err
		b.cancel()
	}
	b.complete(1)
}

func (b *batch) skip(k int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.complete(k)
}

func (b *batch) complete(k int) {
	b.remaining -= k
	if b.remaining == 0 {
		close(b.finished)
	}
}

// err prefers a task's own failure over the cancellations it caused.
func (b *batch) err(parent context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, err := range b.errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	if err := parent.Err(); err != nil {
		return err
	}
	for _, err := range b.errs {
		if err != nil {
			return err
		}
	}
	return nil
}
