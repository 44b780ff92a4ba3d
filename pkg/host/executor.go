package host

import (
	"context"
	"errors"
	"sync"
)

// ErrExecutorClosed is returned for calls submitted after Close.
var ErrExecutorClosed = errors.New("host executor closed")

type outcome struct {
	err      error
	panicked bool
	value    any
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan outcome
}

// Executor runs host calls one at a time on a dedicated goroutine. Hosts
// expose a single-threaded scripting surface, so every call that touches an
// API handle goes through here.
type Executor struct {
	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewExecutor starts an executor with room for queue pending calls.
func NewExecutor(queue int) *Executor {
	if queue < 0 {
		queue = 0
	}
	e := &Executor{
		jobs:    make(chan job, queue),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.stopped)
	for {
		select {
		case j := <-e.jobs:
			j.result <- run(j)
		case <-e.quit:
			for {
				select {
				case j := <-e.jobs:
					j.result <- outcome{err: ErrExecutorClosed}
				default:
					return
				}
			}
		}
	}
}

func run(j job) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{panicked: true, value: r}
		}
	}()
	return outcome{err: j.fn(j.ctx)}
}

// Do runs fn on the executor goroutine and waits for it. A context cancelled
// before the queue accepts the call returns ctx.Err(); once accepted, fn runs
// to completion. A panic in fn is re-raised on the calling goroutine.
func (e *Executor) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan outcome, 1)}

	select {
	case <-e.quit:
		return ErrExecutorClosed
	default:
	}

	select {
	case e.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrExecutorClosed
	}

	var out outcome
	select {
	case out = <-j.result:
	case <-e.stopped:
		select {
		case out = <-j.result:
		default:
			return ErrExecutorClosed
		}
	}
	if out.panicked {
		panic(out.value)
	}
	return out.err
}

// Close stops the executor. Calls still queued fail with ErrExecutorClosed.
func (e *Executor) Close() {
	e.once.Do(func() {
		close(e.quit)
	})
	<-e.stopped
}

// Call runs fn through e and returns its value. A nil executor runs fn
// directly on the calling goroutine.
func Call[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) (T, error) {
	if e == nil {
		return fn(ctx)
	}
	var v T
	err := e.Do(ctx, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	return v, err
}
