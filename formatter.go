package serialz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ItemKind is the capability an item was classified under.
type ItemKind int

// Item kinds, in precedence order.
const (
	KindSerializable ItemKind = iota
	KindSchemaTagged
	KindPlainData
)

// String returns the kind name used in spans and events.
func (k ItemKind) String() string {
	switch k {
	case KindSerializable:
		return "serializable"
	case KindSchemaTagged:
		return "schema_tagged"
	case KindPlainData:
		return "plain_data"
	default:
		return "unknown"
	}
}

// Formatter turns one item into its serialized form. A Formatter without a
// registry runs the plain variant; WithRegistry enables schema projection.
type Formatter struct {
	registry      *Registry
	mu            sync.RWMutex
	requireSchema bool
}

// NewFormatter creates a plain Formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WithRegistry enables the schema-validated variant.
func (f *Formatter) WithRegistry(r *Registry) *Formatter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry = r
	return f
}

// RequireSchema makes items that neither serialize themselves nor name a
// schema fail with KindSchemaNotFound instead of passing through.
func (f *Formatter) RequireSchema(require bool) *Formatter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requireSchema = require
	return f
}

// Registry returns the configured registry, or nil.
func (f *Formatter) Registry() *Registry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.registry
}

// Classify returns the kind an item is formatted as.
func (f *Formatter) Classify(item any) ItemKind {
	f.mu.RLock()
	registry := f.registry
	f.mu.RUnlock()
	return kindOf(item, registry)
}

func kindOf(item any, registry *Registry) ItemKind {
	if _, ok := item.(Serializer); ok && !isAbsent(item) {
		return KindSerializable
	}
	if _, ok := item.(SchemaTagged); ok && registry != nil && !isAbsent(item) {
		return KindSchemaTagged
	}
	return KindPlainData
}

// Format produces the serialized form of item. Failures are returned as
// *Error with Kind set; Path and Index are filled in by the Orchestrator.
func (f *Formatter) Format(ctx context.Context, item any, rc *RequestContext) (result any, err error) {
	f.mu.RLock()
	registry := f.registry
	requireSchema := f.requireSchema
	f.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &Error{Kind: KindSerializeFailure, Err: fmt.Errorf("panic: %v", r), Item: item}
		}
	}()

	switch kindOf(item, registry) {
	case KindSerializable:
		return serializeItem(ctx, item.(Serializer), rc)
	case KindSchemaTagged:
		return projectItem(item, item.(SchemaTagged).SchemaName(), registry, rc)
	default:
		if requireSchema && registry != nil {
			return nil, &Error{
				Kind: KindSchemaNotFound,
				Err:  fmt.Errorf("item of type %T names no schema", item),
				Item: item,
			}
		}
		plain, err := plainOf(item)
		if err != nil {
			return nil, &Error{Kind: KindSerializeFailure, Err: err, Item: item}
		}
		return plain, nil
	}
}

func serializeItem(ctx context.Context, s Serializer, rc *RequestContext) (any, error) {
	v, err := s.Serialize(ctx, rc)
	if err == nil {
		v, err = settle(ctx, v)
	}
	if err != nil {
		e := &Error{Kind: KindSerializeFailure, Err: err, Item: s}
		e.Timeout = errors.Is(err, context.DeadlineExceeded)
		e.Canceled = errors.Is(err, context.Canceled)
		return nil, e
	}
	return v, nil
}

func projectItem(item any, name string, registry *Registry, rc *RequestContext) (any, error) {
	schema, ok := registry.Lookup(name)
	if !ok {
		return nil, &Error{
			Kind:   KindSchemaNotFound,
			Err:    fmt.Errorf("no schema registered as %q", name),
			Schema: name,
			Item:   item,
		}
	}

	data, err := plainOf(item)
	if err == nil {
		data, err = objectOf(data)
	}
	if err != nil {
		return nil, &Error{Kind: KindValidationFailure, Err: err, Schema: name, Item: item}
	}

	out, err := schema.Apply(data, rc)
	if err != nil {
		return nil, &Error{Kind: KindValidationFailure, Err: err, Schema: name, Item: item}
	}
	return out, nil
}

// plainOf returns the plain representation of an item without a serialize
// capability: its Plain accessor, its protobuf JSON form, or the item itself.
func plainOf(item any) (any, error) {
	if isAbsent(item) {
		return item, nil
	}
	switch v := item.(type) {
	case Plainer:
		return v.Plain(), nil
	case proto.Message:
		data, err := protojson.Marshal(v)
		if err != nil {
			return nil, err
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return item, nil
}

// objectOf normalizes plain data to map[string]any for schema application.
// Structs and typed maps are converted through their JSON form.
func objectOf(data any) (any, error) {
	switch data.(type) {
	case nil, map[string]any:
		return data, nil
	}
	kind := reflect.Indirect(reflect.ValueOf(data)).Kind()
	if kind != reflect.Struct && kind != reflect.Map {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out).(map[string]any), nil
}

// normalizeNumbers replaces json.Number values with int64 when they are
// integers that fit, and float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}
