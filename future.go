package serialz

import (
	"context"
	"fmt"
)

// Awaitable is a result that may not be available yet. Serializers return one
// when their representation is produced asynchronously.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Future is an Awaitable settled exactly once.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Async runs fn in its own goroutine and returns a Future for its result.
// A panic inside fn settles the Future with an error.
func Async(fn func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.value, f.err = nil, fmt.Errorf("panic: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolve returns a Future already settled with v.
func Resolve(v any) *Future {
	f := &Future{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Reject returns a Future already settled with err.
func Reject(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Await blocks until the Future settles or ctx is done. A zero Future is
// already settled with (nil, nil).
func (f *Future) Await(ctx context.Context) (any, error) {
	if f.done == nil {
		return f.value, f.err
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the Future has settled.
func (f *Future) Done() <-chan struct{} {
	if f.done == nil {
		return closedDone
	}
	return f.done
}

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// settle resolves v until it is no longer Awaitable.
func settle(ctx context.Context, v any) (any, error) {
	for {
		a, ok := v.(Awaitable)
		if !ok {
			return v, nil
		}
		if isAbsent(a) {
			return nil, nil
		}
		next, err := a.Await(ctx)
		if err != nil {
			return nil, err
		}
		v = next
	}
}
