package serialz

import (
	"context"
	"errors"
	"time"
)

// serializeModel reads the caller's credentials, like an ORM model would.
type serializeModel struct {
	id int
}

func (m serializeModel) Serialize(_ context.Context, rc *RequestContext) (any, error) {
	return map[string]any{"id": m.id, "user": rc.Credentials["id"]}, nil
}

// promiseModel resolves asynchronously.
type promiseModel struct {
	id    int
	delay time.Duration
}

func (m promiseModel) Serialize(ctx context.Context, _ *RequestContext) (any, error) {
	return Async(func() (any, error) {
		if m.delay > 0 {
			select {
			case <-time.After(m.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return map[string]any{"id": m.id, "promisified": true}, nil
	}), nil
}

// errorModel rejects with an empty error, as a bare rejection would.
type errorModel struct{}

func (errorModel) Serialize(context.Context, *RequestContext) (any, error) {
	return Reject(errors.New("")), nil
}

// failingModel fails synchronously after an optional delay.
type failingModel struct {
	msg   string
	delay time.Duration
}

func (m failingModel) Serialize(context.Context, *RequestContext) (any, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return nil, errors.New(m.msg)
}

// blockingModel ignores its context until released.
type blockingModel struct {
	release chan struct{}
}

func (m blockingModel) Serialize(context.Context, *RequestContext) (any, error) {
	<-m.release
	return "late", nil
}

type plainModel struct {
	data map[string]any
}

func (m plainModel) Plain() any { return m.data }

type collection struct {
	items []any
	total int
}

func (c collection) Models() []any { return c.items }

func testContext() *RequestContext {
	return &RequestContext{Credentials: map[string]any{"id": 2}}
}
