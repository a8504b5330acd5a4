package modal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a queue or router after Shutdown.
var ErrClosed = errors.New("modal: queue closed")

// Task is one unit of queued work. ctx is cancelled when the queue closes;
// tasks must stop mutating state once it is done.
type Task func(ctx context.Context)

// Queue runs tasks one at a time in the order they were enqueued.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	wake   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue starts a queue worker.
func NewQueue() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends t. It never blocks and never runs t inline.
// Returns false if the queue has been closed.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain blocks until every task enqueued before the call has finished.
func (q *Queue) Drain(ctx context.Context) error {
	reached := make(chan struct{})
	if !q.Enqueue(func(context.Context) { close(reached) }) {
		return ErrClosed
	}

	select {
	case <-reached:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the running task's context, drops pending tasks and waits
// for the worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.tasks = nil
	q.mu.Unlock()

	q.cancel()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		t(q.ctx)
	}
}

// Sleep waits for d or until ctx is done. It reports whether the full
// interval elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
