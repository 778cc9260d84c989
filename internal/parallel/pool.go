// Package parallel runs independent solver jobs on a bounded pool of
// goroutines. Engines are single-threaded; every job owns its expression
// manager, host and engine, and nothing is shared between jobs except the
// values they return.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// WorkerPool manages a fixed set of goroutines that execute submitted
// tasks. Submit blocks once every worker is busy and the queue is full.
//
// Thread Safety: Submit and Shutdown may be called from any goroutine.
// Shutdown is idempotent.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool creates a pool with maxWorkers goroutines.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers),
		shutdownChan: make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	return pool
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			task()
		case <-wp.shutdownChan:
			return
		}
	}
}

// Submit queues task for execution. It blocks until a slot is free, the
// context is done or the pool is shut down.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	if task == nil {
		return errors.New("parallel: nil task")
	}
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "submit")
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "submit")
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops the workers after their current task. Queued tasks that
// have not started may be dropped; callers that need every result wait for
// their tasks before shutting down.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = errors.New("parallel: worker pool has been shutdown")

// Map applies fn to every input on a pool of workers and returns the
// results in input order. When ctx is cancelled before every input was
// submitted, the unsubmitted slots keep their zero value and the context
// error is returned; submitted jobs still run to completion and should
// watch ctx themselves.
func Map[I, O any](ctx context.Context, workers int, inputs []I, fn func(context.Context, I) O) ([]O, error) {
	out := make([]O, len(inputs))
	if len(inputs) == 0 {
		return out, nil
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}
	pool := NewWorkerPool(workers)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	var err error
	for i, in := range inputs {
		wg.Add(1)
		if err = pool.Submit(ctx, func() {
			defer wg.Done()
			out[i] = fn(ctx, in)
		}); err != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()
	return out, err
}
