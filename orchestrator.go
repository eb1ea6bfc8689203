package serialz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the Orchestrator.
const (
	// Metrics.
	ProcessedTotal    = metricz.Key("serialz.processed.total")
	SuccessesTotal    = metricz.Key("serialz.successes.total")
	FailuresTotal     = metricz.Key("serialz.failures.total")
	EmptyTotal        = metricz.Key("serialz.empty.total")
	ItemsTotal        = metricz.Key("serialz.items.total")
	ItemFailuresTotal = metricz.Key("serialz.items.failures.total")
	PayloadItems      = metricz.Key("serialz.payload.items")
	DurationMs        = metricz.Key("serialz.duration.ms")

	// Spans.
	ProcessSpan = tracez.Key("serialz.process")
	ItemSpan    = tracez.Key("serialz.item")

	// Tags.
	TagShape     = tracez.Tag("serialz.shape")
	TagItemCount = tracez.Tag("serialz.item_count")
	TagIndex     = tracez.Tag("serialz.index")
	TagKind      = tracez.Tag("serialz.kind")
	TagSuccess   = tracez.Tag("serialz.success")
	TagError     = tracez.Tag("serialz.error")

	// Hook event keys.
	EventItemFormatted     = hookz.Key("serialz.item_formatted")
	EventItemFailed        = hookz.Key("serialz.item_failed")
	EventPayloadSerialized = hookz.Key("serialz.payload_serialized")
	EventPayloadFailed     = hookz.Key("serialz.payload_failed")
)

// Event describes an item or payload outcome. Item events carry Index and
// Kind; payload events carry ItemCount and the aggregate counts.
type Event struct {
	Timestamp time.Time
	Error     error
	Name      Name
	Method    string
	Path      string
	Shape     Shape
	Kind      ItemKind
	Index     int
	ItemCount int
	Failed    int
	Duration  time.Duration
	Success   bool
}

// Orchestrator classifies a payload, formats its items, and returns the
// replacement payload. Multi-item payloads are formatted with one goroutine
// per item; the result keeps input order.
//
// When several items fail, every item is still allowed to settle and the
// failure with the lowest input index is returned, so the reported error does
// not depend on scheduling.
//
// # Observability
//
// Metrics:
//   - serialz.processed.total: Counter of payloads processed
//   - serialz.successes.total: Counter of payloads replaced successfully
//   - serialz.failures.total: Counter of payloads that failed
//   - serialz.empty.total: Counter of empty payloads passed through
//   - serialz.items.total: Counter of items formatted
//   - serialz.items.failures.total: Counter of items that failed
//   - serialz.payload.items: Gauge of items in the last payload
//   - serialz.duration.ms: Gauge of the last payload's duration
//
// Traces:
//   - serialz.process: Span for each payload
//   - serialz.item: Child span for each item
//
// Events (via hooks):
//   - serialz.item_formatted / serialz.item_failed: per item
//   - serialz.payload_serialized / serialz.payload_failed: per payload
type Orchestrator struct {
	formatter    *Formatter
	clock        clockz.Clock
	metrics      *metricz.Registry
	tracer       *tracez.Tracer
	hooks        *hookz.Hooks[Event]
	name         Name
	timeout      time.Duration
	mu           sync.RWMutex
	closeOnce    sync.Once
	exposeErrors bool
}

// NewOrchestrator creates an Orchestrator. A nil formatter means NewFormatter().
func NewOrchestrator(name Name, formatter *Formatter) *Orchestrator {
	if formatter == nil {
		formatter = NewFormatter()
	}

	metrics := metricz.New()
	metrics.Counter(ProcessedTotal)
	metrics.Counter(SuccessesTotal)
	metrics.Counter(FailuresTotal)
	metrics.Counter(EmptyTotal)
	metrics.Counter(ItemsTotal)
	metrics.Counter(ItemFailuresTotal)
	metrics.Gauge(PayloadItems)
	metrics.Gauge(DurationMs)

	return &Orchestrator{
		name:      name,
		formatter: formatter,
		clock:     clockz.RealClock,
		metrics:   metrics,
		tracer:    tracez.New(),
		hooks:     hookz.New[Event](),
	}
}

// Name returns the orchestrator name.
func (o *Orchestrator) Name() Name {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.name
}

// Formatter returns the item formatter.
func (o *Orchestrator) Formatter() *Formatter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.formatter
}

// Process formats payload and returns its replacement. Empty payloads are
// returned unchanged. A collection is replaced by a plain []any of its
// formatted members. On failure the returned error is an *Error and the
// result is nil.
func (o *Orchestrator) Process(ctx context.Context, payload any, rc *RequestContext) (result any, err error) {
	o.mu.RLock()
	name := o.name
	formatter := o.formatter
	timeout := o.timeout
	clock := o.getClock()
	o.mu.RUnlock()

	cls, cerr := classify(payload)
	if cerr != nil {
		cerr.Path = []Name{name}
		cerr.Timestamp = clock.Now()
		o.metrics.Counter(ProcessedTotal).Inc()
		o.metrics.Counter(FailuresTotal).Inc()

		event := Event{Name: name, Index: -1, Error: cerr, Timestamp: cerr.Timestamp}
		if rc != nil {
			event.Method, event.Path = rc.Method, rc.Path
		}
		_ = o.hooks.Emit(ctx, EventPayloadFailed, event) //nolint:errcheck
		return nil, cerr
	}
	if cls.Shape == ShapeEmpty {
		o.metrics.Counter(ProcessedTotal).Inc()
		o.metrics.Counter(EmptyTotal).Inc()
		return payload, nil
	}

	o.metrics.Counter(ProcessedTotal).Inc()
	o.metrics.Gauge(PayloadItems).Set(float64(len(cls.Items)))
	start := clock.Now()

	ctx, span := o.tracer.StartSpan(ctx, ProcessSpan)
	span.SetTag(TagShape, cls.Shape.String())
	span.SetTag(TagItemCount, strconv.Itoa(len(cls.Items)))

	outcomes := o.dispatch(ctx, name, formatter, clock, timeout, cls, rc)

	failed := 0
	var first *Error
	for i := range outcomes {
		if outcomes[i].err == nil {
			continue
		}
		failed++
		if first == nil {
			first = outcomes[i].err
		}
	}

	elapsed := clock.Since(start)
	o.metrics.Gauge(DurationMs).Set(float64(elapsed.Milliseconds()))

	event := Event{
		Name:      name,
		Shape:     cls.Shape,
		Index:     -1,
		ItemCount: len(cls.Items),
		Failed:    failed,
		Duration:  elapsed,
		Timestamp: clock.Now(),
	}
	if rc != nil {
		event.Method, event.Path = rc.Method, rc.Path
	}

	if first != nil {
		span.SetTag(TagSuccess, "false")
		span.SetTag(TagError, first.Error())
		span.Finish()
		o.metrics.Counter(FailuresTotal).Inc()

		event.Error = first
		event.Kind = outcomes[first.Index].kind
		_ = o.hooks.Emit(ctx, EventPayloadFailed, event) //nolint:errcheck
		return nil, first
	}

	span.SetTag(TagSuccess, "true")
	span.Finish()
	o.metrics.Counter(SuccessesTotal).Inc()

	event.Success = true
	_ = o.hooks.Emit(ctx, EventPayloadSerialized, event) //nolint:errcheck

	if cls.Shape == ShapeSingle {
		return outcomes[0].value, nil
	}
	values := make([]any, len(outcomes))
	for i := range outcomes {
		values[i] = outcomes[i].value
	}
	return values, nil
}

// classify runs Classify, turning a panic in a Collection's Models into a
// payload failure.
func classify(payload any) (cls Classification, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Kind:  KindSerializeFailure,
				Err:   fmt.Errorf("panic: %v", r),
				Item:  payload,
				Index: -1,
			}
		}
	}()
	return Classify(payload), nil
}

type outcome struct {
	value any
	err   *Error
	kind  ItemKind
}

// dispatch formats every item and waits for all of them. Single items run on
// the calling goroutine.
func (o *Orchestrator) dispatch(ctx context.Context, name Name, formatter *Formatter, clock clockz.Clock, timeout time.Duration, cls Classification, rc *RequestContext) []outcome {
	outcomes := make([]outcome, len(cls.Items))
	if cls.Shape == ShapeSingle {
		outcomes[0] = o.formatItem(ctx, name, formatter, clock, timeout, 0, cls.Items[0], rc)
		return outcomes
	}

	var wg sync.WaitGroup
	wg.Add(len(cls.Items))
	for i, item := range cls.Items {
		go func(i int, item any) {
			defer wg.Done()
			outcomes[i] = o.formatItem(ctx, name, formatter, clock, timeout, i, item, rc)
		}(i, item)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) formatItem(ctx context.Context, name Name, formatter *Formatter, clock clockz.Clock, timeout time.Duration, index int, item any, rc *RequestContext) outcome {
	kind := formatter.Classify(item)

	itemCtx, span := o.tracer.StartSpan(ctx, ItemSpan)
	span.SetTag(TagIndex, strconv.Itoa(index))
	span.SetTag(TagKind, kind.String())
	defer span.Finish()

	o.metrics.Counter(ItemsTotal).Inc()
	start := clock.Now()

	var value any
	var err error
	if timeout > 0 {
		value, err = formatWithTimeout(itemCtx, clock, timeout, formatter, item, rc)
	} else {
		value, err = formatter.Format(itemCtx, item, rc)
	}
	elapsed := clock.Since(start)

	event := Event{
		Name:      name,
		Kind:      kind,
		Index:     index,
		ItemCount: 1,
		Duration:  elapsed,
		Timestamp: clock.Now(),
	}

	if err != nil {
		serr := asItemError(err, item)
		serr.Path = []Name{name, "item[" + strconv.Itoa(index) + "]"}
		serr.Index = index
		serr.Duration = elapsed
		serr.Timestamp = clock.Now()

		span.SetTag(TagSuccess, "false")
		span.SetTag(TagError, serr.Cause())
		o.metrics.Counter(ItemFailuresTotal).Inc()

		event.Error = serr
		event.Failed = 1
		_ = o.hooks.Emit(ctx, EventItemFailed, event) //nolint:errcheck
		return outcome{err: serr, kind: kind}
	}

	span.SetTag(TagSuccess, "true")
	event.Success = true
	_ = o.hooks.Emit(ctx, EventItemFormatted, event) //nolint:errcheck
	return outcome{value: value, kind: kind}
}

// formatWithTimeout bounds one item. A Serializer that ignores its context
// keeps running after the deadline; its result is discarded.
func formatWithTimeout(ctx context.Context, clock clockz.Clock, timeout time.Duration, formatter *Formatter, item any, rc *RequestContext) (any, error) {
	ctx, cancel := clock.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := formatter.Format(ctx, item, rc)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, &Error{
			Kind:     KindSerializeFailure,
			Err:      ctx.Err(),
			Item:     item,
			Timeout:  errors.Is(ctx.Err(), context.DeadlineExceeded),
			Canceled: errors.Is(ctx.Err(), context.Canceled),
		}
	}
}

func asItemError(err error, item any) *Error {
	var serr *Error
	if errors.As(err, &serr) {
		return serr
	}
	return &Error{Kind: KindSerializeFailure, Err: err, Item: item}
}

// WithTimeout bounds each item's formatting. Zero, the default, disables it.
func (o *Orchestrator) WithTimeout(timeout time.Duration) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeout = timeout
	return o
}

// WithClock sets a custom clock for testing.
func (o *Orchestrator) WithClock(clock clockz.Clock) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clock = clock
	return o
}

// WithExposeErrors controls whether failure messages reach clients.
func (o *Orchestrator) WithExposeErrors(expose bool) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exposeErrors = expose
	return o
}

func (o *Orchestrator) getClock() clockz.Clock {
	if o.clock == nil {
		return clockz.RealClock
	}
	return o.clock
}

// Metrics returns the metrics registry for this orchestrator.
func (o *Orchestrator) Metrics() *metricz.Registry {
	return o.metrics
}

// Tracer returns the tracer for this orchestrator.
func (o *Orchestrator) Tracer() *tracez.Tracer {
	return o.tracer
}

// Close shuts down observability components. Close is idempotent.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		if o.tracer != nil {
			o.tracer.Close()
		}
		o.hooks.Close()
	})
	return nil
}

// OnItemFormatted registers a handler called after each item succeeds.
// Handlers run asynchronously.
func (o *Orchestrator) OnItemFormatted(handler func(context.Context, Event) error) error {
	_, err := o.hooks.Hook(EventItemFormatted, handler)
	return err
}

// OnItemFailed registers a handler called after each item fails.
func (o *Orchestrator) OnItemFailed(handler func(context.Context, Event) error) error {
	_, err := o.hooks.Hook(EventItemFailed, handler)
	return err
}

// OnSerialized registers a handler called after a payload is replaced.
func (o *Orchestrator) OnSerialized(handler func(context.Context, Event) error) error {
	_, err := o.hooks.Hook(EventPayloadSerialized, handler)
	return err
}

// OnFailed registers a handler called after a payload fails. Event.Error is
// the *Error that will be translated for the client.
func (o *Orchestrator) OnFailed(handler func(context.Context, Event) error) error {
	_, err := o.hooks.Hook(EventPayloadFailed, handler)
	return err
}
