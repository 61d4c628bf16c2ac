package admission

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	svcerrors "github.com/printforge/printforge-go-components/internal/slicingservice/errors"
)

type queueItem struct {
	enqueued time.Time
	run      func()
	done     chan struct{}
	rejected bool
}

// SliceQueue is a bounded FIFO queue with a fixed worker set. Submissions
// past the queue capacity are rejected immediately; items that wait past
// the admission budget are rejected at dispatch. Dispatched work runs to
// completion, so at most the worker count of slicing pipelines is live at
// any moment.
type SliceQueue struct {
	jobs    chan *queueItem
	maxWait time.Duration
	now     func() time.Time

	group  *errgroup.Group
	mu     sync.Mutex
	closed bool
}

// NewSliceQueue starts workers goroutines over a queue of queueLength
// pending slots. Zero values fall back to CPU count workers and a small
// backlog.
func NewSliceQueue(workers, queueLength int, maxWait time.Duration) *SliceQueue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueLength <= 0 {
		queueLength = 2 * workers
	}
	q := &SliceQueue{
		jobs:    make(chan *queueItem, queueLength),
		maxWait: maxWait,
		now:     time.Now,
		group:   &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		q.group.Go(func() error {
			q.work()
			return nil
		})
	}
	return q
}

func (q *SliceQueue) work() {
	for item := range q.jobs {
		if q.maxWait > 0 && q.now().Sub(item.enqueued) > q.maxWait {
			item.rejected = true
			close(item.done)
			continue
		}
		item.run()
		close(item.done)
	}
}

// Do admits fn into the queue and blocks until it has run. It returns
// ErrQueueFull when no pending slot is free and ErrQueueTimeout when the
// item waited past the admission budget before a worker picked it up.
func (q *SliceQueue) Do(fn func()) error {
	item := &queueItem{enqueued: q.now(), run: fn, done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return svcerrors.ErrQueueFull
	}
	// Non-blocking offer: a full backlog rejects instead of queueing.
	select {
	case q.jobs <- item:
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		return svcerrors.ErrQueueFull
	}

	<-item.done
	if item.rejected {
		return svcerrors.ErrQueueTimeout
	}
	return nil
}

// Shutdown stops intake and waits until the workers have drained the
// backlog or ctx expires.
func (q *SliceQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
