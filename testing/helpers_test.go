package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/serialz"
)

func TestMockItem(t *testing.T) {
	ctx := context.Background()
	rc := &serialz.RequestContext{Credentials: map[string]any{"id": 2}}

	t.Run("Returns Configured Value", func(t *testing.T) {
		mock := NewMockItem(t, "mock-value").WithReturn("mocked", nil)

		result, err := mock.Serialize(ctx, rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "mocked" {
			t.Errorf("expected 'mocked', got %v", result)
		}
	})

	t.Run("Returns Configured Error", func(t *testing.T) {
		expectedErr := errors.New("test error")
		mock := NewMockItem(t, "mock-error").WithReturn(nil, expectedErr)

		_, err := mock.Serialize(ctx, rc)
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("Async Returns Future", func(t *testing.T) {
		mock := NewMockItem(t, "mock-async").WithReturn(42, nil).WithAsync(true)

		result, err := mock.Serialize(ctx, rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		future, ok := result.(*serialz.Future)
		if !ok {
			t.Fatalf("expected *serialz.Future, got %T", result)
		}
		value, err := future.Await(ctx)
		if err != nil || value != 42 {
			t.Errorf("expected 42, got %v (err %v)", value, err)
		}
	})

	t.Run("Tracks Calls And Request", func(t *testing.T) {
		mock := NewMockItem(t, "mock-count")
		for i := 0; i < 3; i++ {
			_, _ = mock.Serialize(ctx, rc) //nolint:errcheck
		}

		AssertSerialized(t, mock, 3)
		if mock.LastRequest() != rc {
			t.Error("expected last request context to be recorded")
		}
		if len(mock.CallHistory()) != 3 {
			t.Errorf("expected 3 history entries, got %d", len(mock.CallHistory()))
		}

		mock.Reset()
		AssertNotSerialized(t, mock)
	})

	t.Run("Respects Context Cancellation During Delay", func(t *testing.T) {
		mock := NewMockItem(t, "mock-delay").WithReturn(1, nil).WithDelay(time.Second)

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := mock.Serialize(cctx, rc)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Panics When Configured", func(t *testing.T) {
		mock := NewMockItem(t, "mock-panic").WithPanic("boom")

		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("expected panic 'boom', got %v", r)
			}
		}()
		_, _ = mock.Serialize(ctx, rc) //nolint:errcheck
	})
}

func TestMockCollection(t *testing.T) {
	c := NewMockCollection(1, 2, 3)
	if c.Total != 3 || c.Page != 1 {
		t.Errorf("unexpected metadata: %+v", c)
	}
	cls := serialz.Classify(c)
	if cls.Shape != serialz.ShapeCollection {
		t.Fatalf("expected collection shape, got %s", cls.Shape)
	}
	AssertPayload(t, cls.Items, []any{1, 2, 3})
}

func TestChaosItem(t *testing.T) {
	ctx := context.Background()
	base := NewMockItem(t, "base").WithReturn("ok", nil)

	t.Run("Always Fails At Full Rate", func(t *testing.T) {
		chaos := NewChaosItem("chaos", base, ChaosConfig{FailureRate: 1, Seed: 7})
		for i := 0; i < 10; i++ {
			if _, err := chaos.Serialize(ctx, nil); err == nil {
				t.Fatal("expected induced failure")
			}
		}
		stats := chaos.Stats()
		if stats.TotalCalls != 10 || stats.FailedCalls != 10 {
			t.Errorf("unexpected stats: %s", stats)
		}
		if stats.FailureRate() != 1 {
			t.Errorf("expected failure rate 1, got %f", stats.FailureRate())
		}
	})

	t.Run("Passes Through At Zero Rate", func(t *testing.T) {
		chaos := NewChaosItem("calm", base, ChaosConfig{Seed: 7})
		result, err := chaos.Serialize(ctx, nil)
		if err != nil || result != "ok" {
			t.Errorf("expected ok, got %v (err %v)", result, err)
		}
	})
}

func TestParallelTest(t *testing.T) {
	var count int64
	ParallelTest(t, 8, func(int) {
		atomic.AddInt64(&count, 1)
	})
	if atomic.LoadInt64(&count) != 8 {
		t.Errorf("expected 8 invocations, got %d", count)
	}
}
