// Package queue runs asynchronous operations one at a time in enqueue order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrQueueStopped = errors.New("queue stopped")
	ErrTaskPanicked = errors.New("task panicked")
)

// Queue is a FIFO of tasks drained by a single worker goroutine.
// A task starts only after every earlier task has settled; a failing task
// never blocks the ones behind it. Tasks cannot be withdrawn once enqueued.
type Queue struct {
	name string

	lock      sync.Mutex
	cond      *sync.Cond
	ops       deque.Deque[func()]
	isStopped bool
	done      chan struct{}
}

func New(name string) *Queue {
	q := &Queue{
		name: name,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.lock)
	return q
}

func (q *Queue) Start() {
	go q.process()
}

// Stop refuses new tasks. Tasks already queued still run; Done is closed
// once the last of them settles.
func (q *Queue) Stop() {
	q.lock.Lock()
	if q.isStopped {
		q.lock.Unlock()
		return
	}
	q.isStopped = true
	q.cond.Broadcast()
	q.lock.Unlock()
}

func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len reports tasks waiting to start.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.ops.Len()
}

// Enqueue schedules task behind everything already queued and returns a
// handle that settles with the task's own result.
func Enqueue[T any](q *Queue, task func() (T, error)) *Future[T] {
	f := newFuture[T]()

	q.lock.Lock()
	if q.isStopped {
		q.lock.Unlock()
		var zero T
		f.settle(zero, ErrQueueStopped)
		return f
	}
	q.ops.PushBack(func() {
		var (
			val T
			err error
		)
		var pc panics.Catcher
		pc.Try(func() { val, err = task() })
		if r := pc.Recovered(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r.Value)
			log.Error().Str("module", "app.queue").Str("queue", q.name).Str("stack", string(r.Stack)).Msg("task panicked")
		} else if err != nil {
			log.Debug().Err(err).Str("module", "app.queue").Str("queue", q.name).Msg("task failed")
		}
		f.settle(val, err)
	})
	q.cond.Signal()
	q.lock.Unlock()
	return f
}

// Go enqueues a task that only reports an error.
func (q *Queue) Go(task func() error) *Future[struct{}] {
	return Enqueue(q, func() (struct{}, error) {
		return struct{}{}, task()
	})
}

func (q *Queue) process() {
	defer close(q.done)
	for {
		q.lock.Lock()
		for q.ops.Len() == 0 && !q.isStopped {
			q.cond.Wait()
		}
		if q.ops.Len() == 0 {
			q.lock.Unlock()
			log.Debug().Str("module", "app.queue").Str("queue", q.name).Msg("queue drained")
			return
		}
		op := q.ops.PopFront()
		q.lock.Unlock()

		op()
	}
}

// Future settles exactly once with the result of its task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task settles or ctx is done. Giving up on the wait
// does not withdraw the task.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
