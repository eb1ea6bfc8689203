package serialz

import "context"

// Name identifies an orchestrator in error paths, metrics and events.
type Name = string

// Serializer is implemented by domain objects that know how to produce their
// own external representation. The returned value may be an Awaitable, in
// which case it is resolved before use.
type Serializer interface {
	Serialize(ctx context.Context, rc *RequestContext) (any, error)
}

// Plainer is implemented by values exposing a plain-data accessor.
type Plainer interface {
	Plain() any
}

// SchemaTagged is implemented by items that name the schema used to project them.
type SchemaTagged interface {
	SchemaName() string
}

// Tagged pairs plain data with the name of the schema that projects it.
type Tagged struct {
	Data   map[string]any
	Schema string
}

// SchemaName implements SchemaTagged.
func (t Tagged) SchemaName() string { return t.Schema }

// Plain implements Plainer.
func (t Tagged) Plain() any { return t.Data }

// Collection is implemented by wrappers that expose their members through a
// field rather than being a slice themselves. Wrapper metadata is discarded
// when the collection is serialized.
type Collection interface {
	Models() []any
}
