package backup

import (
	"context"
	"fmt"
	"sync"
)

// writeQueue serializes all mutations of the backup/checkpoint directories
// onto a single worker goroutine. The worker is the sole writer, so two
// backups can never interleave their writes and no file locks are needed
// in a single-process deployment.
type writeQueue struct {
	tasks     chan writeTask
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

type writeTask struct {
	fn   func() error
	done chan error
}

// newWriteQueue creates the queue and starts its single worker.
// bufferSize determines how many writes can be queued before do blocks.
func newWriteQueue(bufferSize int) *writeQueue {
	q := &writeQueue{
		tasks:     make(chan writeTask, bufferSize),
		closeChan: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// worker drains tasks until the queue is stopped.
func (q *writeQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.closeChan:
			// Drain anything already queued so callers are not left hanging.
			for {
				select {
				case task := <-q.tasks:
					task.done <- task.fn()
				default:
					return
				}
			}
		case task := <-q.tasks:
			task.done <- task.fn()
		}
	}
}

// do submits fn to the worker and waits for its result.
func (q *writeQueue) do(ctx context.Context, fn func() error) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("backup write queue is closed")
	}
	q.mu.RUnlock()

	task := writeTask{fn: fn, done: make(chan error, 1)}

	select {
	case q.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("backup write queue is closed")
	}

	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop shuts the queue down and waits for the worker to exit.
func (q *writeQueue) stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
