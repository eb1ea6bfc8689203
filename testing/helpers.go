// Package testing provides test utilities for code that serializes payloads
// with serialz.
//
// It includes mock domain objects, a collection wrapper, chaos items and
// assertion helpers.
//
// Example usage:
//
//	func TestUsersEndpoint(t *testing.T) {
//		item := sztest.NewMockItem(t, "user-1").WithReturn(map[string]any{"id": 1}, nil)
//
//		o := serialz.NewOrchestrator("test", nil)
//		result, err := o.Process(context.Background(), []any{item}, &serialz.RequestContext{})
//
//		sztest.AssertNoError(t, err)
//		sztest.AssertPayload(t, result, []any{map[string]any{"id": 1}})
//		sztest.AssertSerialized(t, item, 1)
//	}
package testing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/serialz"
)

// MockItem is a domain object whose Serialize behavior is configurable.
// It records every call and the RequestContext it received.
type MockItem struct { //nolint:govet // fieldalignment: test helper struct optimized for readability
	t           *testing.T
	name        string
	callCount   int64
	lastRC      *serialz.RequestContext
	returnVal   any
	returnErr   error
	delay       time.Duration
	panicMsg    string
	async       bool
	mu          sync.RWMutex
	callHistory []MockCall
	maxHistory  int
}

// MockCall represents a single Serialize call.
type MockCall struct {
	Context   context.Context
	Request   *serialz.RequestContext
	Timestamp time.Time
}

// NewMockItem creates a mock item. Until configured it serializes to nil.
func NewMockItem(t *testing.T, name string) *MockItem {
	return &MockItem{
		t:          t,
		name:       name,
		maxHistory: 100,
	}
}

// WithReturn configures the value and error returned by Serialize.
func (m *MockItem) WithReturn(val any, err error) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal = val
	m.returnErr = err
	return m
}

// WithAsync makes Serialize return a serialz.Future that settles with the
// configured value or error instead of returning them directly.
func (m *MockItem) WithAsync(async bool) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.async = async
	return m
}

// WithDelay delays the result. For async items the delay happens inside the Future.
func (m *MockItem) WithDelay(d time.Duration) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic makes Serialize panic with msg.
func (m *MockItem) WithPanic(msg string) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// Name returns the mock's name.
func (m *MockItem) Name() string {
	return m.name
}

// Serialize implements serialz.Serializer.
func (m *MockItem) Serialize(ctx context.Context, rc *serialz.RequestContext) (any, error) {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastRC = rc
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall{Context: ctx, Request: rc, Timestamp: time.Now()})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:]
		}
	}
	delay := m.delay
	returnVal := m.returnVal
	returnErr := m.returnErr
	panicMsg := m.panicMsg
	async := m.async
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}

	settle := func() (any, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return returnVal, returnErr
	}

	if async {
		return serialz.Async(settle), nil
	}
	return settle()
}

// CallCount returns the number of Serialize calls.
func (m *MockItem) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastRequest returns the RequestContext from the most recent call.
func (m *MockItem) LastRequest() *serialz.RequestContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRC
}

// CallHistory returns a copy of all recorded calls.
func (m *MockItem) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]MockCall, len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// Reset clears call tracking.
func (m *MockItem) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.lastRC = nil
	m.callHistory = nil
}

// MockCollection is a paginated collection wrapper.
type MockCollection struct {
	Items []any
	Page  int
	Total int
}

// NewMockCollection wraps items as a collection on page 1.
func NewMockCollection(items ...any) *MockCollection {
	return &MockCollection{Items: items, Page: 1, Total: len(items)}
}

// Models implements serialz.Collection.
func (c *MockCollection) Models() []any {
	return c.Items
}

// Assertion Helpers

// AssertSerialized verifies that a mock item was serialized exactly n times.
func AssertSerialized(t *testing.T, mock *MockItem, expectedCalls int) {
	t.Helper()
	if actual := mock.CallCount(); actual != expectedCalls {
		t.Errorf("expected mock item %s to be serialized %d times, but was serialized %d times",
			mock.name, expectedCalls, actual)
	}
}

// AssertNotSerialized verifies that a mock item was never serialized.
func AssertNotSerialized(t *testing.T, mock *MockItem) {
	t.Helper()
	AssertSerialized(t, mock, 0)
}

// AssertPayload compares a processed payload with the expected value.
func AssertPayload(t *testing.T, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected payload:\n got: %#v\nwant: %#v", got, want)
	}
}

// AssertNoError fails the test immediately if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorKind verifies that err is a *serialz.Error of the given kind.
func AssertErrorKind(t *testing.T, err error, kind serialz.ErrorKind) *serialz.Error {
	t.Helper()
	var serr *serialz.Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *serialz.Error of kind %s, got %v", kind, err)
		return nil
	}
	if serr.Kind != kind {
		t.Errorf("expected error kind %s, got %s", kind, serr.Kind)
	}
	return serr
}

// ChaosItem wraps a serializer and injects failures, latency and panics.
type ChaosItem struct { //nolint:govet // fieldalignment: test helper struct optimized for readability
	name        string
	wrapped     serialz.Serializer
	failureRate float64
	latencyMin  time.Duration
	latencyMax  time.Duration
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	totalCalls  int64
	failedCalls int64
	panicCalls  int64
}

// ChaosConfig holds configuration for chaos testing.
type ChaosConfig struct {
	FailureRate float64       // Probability of returning an error (0.0 to 1.0)
	LatencyMin  time.Duration // Minimum additional latency to inject
	LatencyMax  time.Duration // Maximum additional latency to inject
	PanicRate   float64       // Probability of panicking (0.0 to 1.0)
	Seed        int64         // Random seed for reproducible chaos (0 for random seed)
}

// NewChaosItem creates a chaos item that wraps another serializer.
func NewChaosItem(name string, wrapped serialz.Serializer, config ChaosConfig) *ChaosItem {
	seed := config.Seed
	if seed == 0 {
		var seedBytes [8]byte
		if _, err := rand.Read(seedBytes[:]); err != nil {
			seed = time.Now().UnixNano()
		} else {
			for _, b := range seedBytes {
				seed = seed<<8 | int64(b)
			}
		}
	}

	return &ChaosItem{
		name:        name,
		wrapped:     wrapped,
		failureRate: config.FailureRate,
		latencyMin:  config.LatencyMin,
		latencyMax:  config.LatencyMax,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: deterministic chaos for tests
	}
}

// Serialize implements serialz.Serializer with chaos injection.
func (c *ChaosItem) Serialize(ctx context.Context, rc *serialz.RequestContext) (any, error) {
	atomic.AddInt64(&c.totalCalls, 1)

	c.mu.Lock()
	if c.rng.Float64() < c.panicRate {
		c.mu.Unlock()
		atomic.AddInt64(&c.panicCalls, 1)
		panic("chaos item induced panic")
	}

	var latency time.Duration
	if c.latencyMax > c.latencyMin {
		latency = c.latencyMin + time.Duration(c.rng.Int63n(int64(c.latencyMax-c.latencyMin)))
	} else if c.latencyMin > 0 {
		latency = c.latencyMin
	}
	injectFailure := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if injectFailure {
		atomic.AddInt64(&c.failedCalls, 1)
		return nil, fmt.Errorf("chaos item %s induced failure", c.name)
	}
	return c.wrapped.Serialize(ctx, rc)
}

// Stats returns statistics about chaos injection.
func (c *ChaosItem) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:  atomic.LoadInt64(&c.totalCalls),
		FailedCalls: atomic.LoadInt64(&c.failedCalls),
		PanicCalls:  atomic.LoadInt64(&c.panicCalls),
	}
}

// ChaosStats holds statistics about chaos injection.
type ChaosStats struct {
	TotalCalls  int64
	FailedCalls int64
	PanicCalls  int64
}

// FailureRate returns the observed failure rate.
func (s ChaosStats) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.FailedCalls) / float64(s.TotalCalls)
}

// String returns a human-readable representation of the stats.
func (s ChaosStats) String() string {
	return fmt.Sprintf("ChaosStats{Total: %d, Failed: %d (%.1f%%), Panics: %d}",
		s.TotalCalls, s.FailedCalls, s.FailureRate()*100, s.PanicCalls)
}

// Helper Functions

// ParallelTest runs testFunc concurrently from several goroutines.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}
	wg.Wait()
}
