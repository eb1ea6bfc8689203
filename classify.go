package serialz

import "reflect"

// Shape describes the structure of a payload.
type Shape int

// Payload shapes, checked in the order Collection, Array, Single.
const (
	ShapeEmpty Shape = iota
	ShapeSingle
	ShapeArray
	ShapeCollection
)

// String returns the lowercase shape name used in spans and events.
func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeSingle:
		return "single"
	case ShapeArray:
		return "array"
	case ShapeCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify: the payload shape and the items
// extracted from it, in order.
type Classification struct {
	Items []any
	Shape Shape
}

// Classify inspects a payload and extracts its items. It never mutates the
// payload. A collection wrapper takes precedence over a slice, since a wrapper
// type may itself be backed by a slice.
func Classify(payload any) Classification {
	if isAbsent(payload) {
		return Classification{Shape: ShapeEmpty}
	}

	if c, ok := payload.(Collection); ok {
		models := c.Models()
		items := make([]any, len(models))
		copy(items, models)
		return Classification{Shape: ShapeCollection, Items: items}
	}

	if items, ok := payload.([]any); ok {
		out := make([]any, len(items))
		copy(out, items)
		return Classification{Shape: ShapeArray, Items: out}
	}

	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		// []byte is written as a body, not iterated
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		items := make([]any, v.Len())
		for i := range items {
			items[i] = v.Index(i).Interface()
		}
		return Classification{Shape: ShapeArray, Items: items}
	}

	return Classification{Shape: ShapeSingle, Items: []any{payload}}
}

// isAbsent reports whether a payload is nil, including typed nils.
func isAbsent(payload any) bool {
	if payload == nil {
		return true
	}
	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
