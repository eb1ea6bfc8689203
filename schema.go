package serialz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldType is the declared type of a schema field.
type FieldType string

// Supported field types. An empty type accepts any value.
const (
	TypeAny     FieldType = "any"
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field is the rule set for one key of a schema.
//
// Default may be a literal or a context reference: a string starting with "$"
// such as "$headers.default" is resolved against the RequestContext at
// validation time. Use "$$" for a literal leading dollar sign.
//
// Validate holds go-playground/validator tags applied to the coerced value,
// for example "gt=0,lte=100" or "omitempty,email".
type Field struct {
	Default  any       `yaml:"default" json:"default"`
	Type     FieldType `yaml:"type" json:"type" validate:"omitempty,oneof=any string number integer boolean object array"`
	Validate string    `yaml:"validate" json:"validate"`
	Required bool      `yaml:"required" json:"required"`
}

// Schema projects an item's plain data: declared fields are defaulted,
// coerced and validated, and unknown fields are stripped.
type Schema struct {
	Fields map[string]Field `yaml:"fields" json:"fields" validate:"required,min=1,dive,keys,required,endkeys"`
	Name   string           `yaml:"-" json:"-"`

	validate *validator.Validate
	order    []string
}

// compile checks the definition and prepares it for use. v is shared by every
// schema of a registry; validator.Validate is safe for concurrent use.
func (s *Schema) compile(v *validator.Validate) error {
	if err := v.Struct(s); err != nil {
		return err
	}
	for name, f := range s.Fields {
		if f.Validate == "" {
			continue
		}
		if err := probeTag(v, f.Validate); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	s.order = make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		s.order = append(s.order, name)
	}
	sort.Strings(s.order)
	s.validate = v
	return nil
}

// probeTag surfaces unknown validator tags at load time instead of as a
// panic during a request.
func probeTag(v *validator.Validate, tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid validate tag %q: %v", tag, r)
		}
	}()
	_ = v.Var(nil, tag) //nolint:errcheck // only the panic matters
	return nil
}

// Apply validates data against the schema and returns the projected object.
// Validation stops at the first failing field.
func (s *Schema) Apply(data any, rc *RequestContext) (map[string]any, error) {
	input, ok := data.(map[string]any)
	if !ok {
		if isAbsent(data) {
			input = map[string]any{}
		} else {
			return nil, fmt.Errorf("value must be an object, got %T", data)
		}
	}

	out := make(map[string]any, len(s.order))
	for _, name := range s.order {
		f := s.Fields[name]

		value, present := input[name]
		if !present || value == nil {
			value, present = f.defaultValue(rc)
		}
		if !present {
			if f.Required {
				return nil, fmt.Errorf("%q is required", name)
			}
			continue
		}

		coerced, err := coerce(f.Type, value)
		if err != nil {
			return nil, fmt.Errorf("%q %w", name, err)
		}

		if f.Validate != "" && s.validate != nil {
			if err := s.validate.Var(coerced, f.Validate); err != nil {
				return nil, describeValidation(name, err)
			}
		}
		out[name] = coerced
	}
	return out, nil
}

func (f Field) defaultValue(rc *RequestContext) (any, bool) {
	if f.Default == nil {
		return nil, false
	}
	ref, ok := f.Default.(string)
	if !ok || !strings.HasPrefix(ref, "$") {
		return f.Default, true
	}
	if strings.HasPrefix(ref, "$$") {
		return ref[1:], true
	}
	v, found := rc.Lookup(ref)
	if !found || v == nil {
		return nil, false
	}
	return v, true
}

func describeValidation(name string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%q failed on the %q rule (%s)", name, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%q failed on the %q rule", name, fe.Tag())
	}
	return fmt.Errorf("%q %w", name, err)
}

func coerce(t FieldType, v any) (any, error) {
	switch t {
	case "", TypeAny:
		return v, nil
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, errors.New("must be a string")
	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, errors.New("must be a number")
		}
		return n, nil
	case TypeInteger:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, errors.New("must be a boolean")
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		return nil, errors.New("must be an object")
	case TypeArray:
		if a, ok := v.([]any); ok {
			return a, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		}
		return nil, errors.New("must be an array")
	}
	return nil, fmt.Errorf("has unsupported type %q", t)
}

var errIntegerRange = errors.New("is out of range for a 64-bit integer")

// toInt converts v to int64 without passing integers through float64, so
// values above 2^53 keep their precision and out-of-range values fail.
func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return parseInt(string(n))
	case string:
		return parseInt(strings.TrimSpace(n))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, errIntegerRange
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return floatToInt(rv.Float())
	}
	return 0, errors.New("must be a number")
}

func parseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errIntegerRange
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, errors.New("must be a number")
	}
	return floatToInt(f)
}

// floatToInt accepts integral floats in [-2^63, 2^63).
func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, errors.New("must be a number")
	}
	if math.IsInf(f, 0) || f < -(1<<63) || f >= 1<<63 {
		return 0, errIntegerRange
	}
	if f != math.Trunc(f) {
		return 0, errors.New("must be an integer")
	}
	return int64(f), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32:
		return rv.Float(), true
	}
	return 0, false
}
