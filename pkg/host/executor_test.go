package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorSerializes(t *testing.T) {
	e := NewExecutor(16)
	defer e.Close()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("max concurrent calls = %d, want 1", maxRunning)
	}
}

func TestExecutorReturnsErrorAndValue(t *testing.T) {
	e := NewExecutor(1)
	defer e.Close()

	want := errors.New("boom")
	if err := e.Do(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}

	v, err := Call(context.Background(), e, func(context.Context) (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("Call() = %d, %v; want 42, nil", v, err)
	}

	v, err = Call(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Call(nil executor) = %d, %v; want 7, nil", v, err)
	}
}

func TestExecutorPanicPropagates(t *testing.T) {
	e := NewExecutor(1)
	defer e.Close()

	defer func() {
		if r := recover(); r != "host crashed" {
			t.Errorf("recovered %v, want host crashed", r)
		}
		// The executor survives a panicking call.
		if err := e.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Errorf("Do() after panic error = %v", err)
		}
	}()
	_ = e.Do(context.Background(), func(context.Context) error { panic("host crashed") })
}

func TestExecutorCancelWhileQueued(t *testing.T) {
	e := NewExecutor(0)
	defer e.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = e.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Do(ctx, func(context.Context) error { return nil })
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestExecutorClosed(t *testing.T) {
	e := NewExecutor(1)
	e.Close()
	e.Close()

	if err := e.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Do() after Close error = %v, want ErrExecutorClosed", err)
	}
}
