package worker

import (
	"context"
	"log/slog"
	"sync"
)

// ProcessFunc handles one job. Errors are reported to the pool's error handler.
type ProcessFunc[T any] func(ctx context.Context, job T) error

// WorkerPool runs a fixed number of workers over a bounded job queue.
type WorkerPool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    func(job T, err error)
	wg         sync.WaitGroup
}

func NewWorkerPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	return &WorkerPool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
		onError: func(_ T, err error) {
			slog.Error("job failed", "error", err)
		},
	}
}

// OnError replaces the default handler, which logs the error. Call before Start.
func (wp *WorkerPool[T]) OnError(fn func(job T, err error)) {
	wp.onError = fn
}

func (wp *WorkerPool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				slog.Debug("worker job error", "worker", id, "error", err)
				wp.onError(job, err)
			}
		}
	}
}

// Submit enqueues a job, blocking while the queue is full.
// It returns false if ctx is cancelled first.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the queue and waits for workers to exit. No Submit may follow.
func (wp *WorkerPool[T]) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}
