package value

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a sealed interface over the constrained payload value types.
// Only Null, String, Num, Bool, List, and Map implement it. Event payloads,
// rule condition operands, and pipeline configuration overrides are all
// expressed in this type so that condition evaluation stays exhaustive and
// testable without reflection.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit null.
type Null struct{}

func (Null) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Num represents a numeric value. Engagement scores, sentiment samples,
// and thresholds are fractional, so a single float64 representation is
// used for all numbers.
type Num float64

func (Num) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// List represents an ordered sequence of Values.
type List []Value

func (List) value() {}

// Map represents string-keyed Values. This is the payload type carried by
// every event on the bus.
type Map map[string]Value

func (Map) value() {}

// FromAny converts a plain Go value into a Value. Maps and slices convert
// recursively. Unsupported types return an error rather than a lossy guess.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Num(val), nil
	case int64:
		return Num(val), nil
	case float64:
		return Num(val), nil
	case float32:
		return Num(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of float64 range: %s", val)
		}
		return Num(f), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = conv
		}
		return list, nil
	case []string:
		list := make(List, len(val))
		for i, elem := range val {
			list[i] = String(elem)
		}
		return list, nil
	case []float64:
		list := make(List, len(val))
		for i, elem := range val {
			list[i] = Num(elem)
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = conv
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", v)
	}
}

// MapFromAny converts a map[string]any into a Map.
func MapFromAny(m map[string]any) (Map, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return Map{}, nil
	}
	return v.(Map), nil
}

// MustMap is MapFromAny that panics on conversion failure.
// Intended for literal construction in tests and fixtures.
func MustMap(m map[string]any) Map {
	v, err := MapFromAny(m)
	if err != nil {
		panic(err)
	}
	return v
}

// ToAny converts a Value back to plain Go values (string, float64, bool,
// []any, map[string]any, nil).
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Num:
		return float64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// Resolve walks a dotted path into a Map, descending through nested Maps.
// Returns the resolved Value and true, or nil and false when any segment
// is missing or a non-Map is traversed into.
func Resolve(m Map, path string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur Value = m
	for _, seg := range segments {
		obj, ok := cur.(Map)
		if !ok {
			return nil, false
		}
		next, ok := obj[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Merge returns a shallow merge of two Maps. Keys in b overwrite keys in a.
// Neither input is mutated.
func Merge(a, b Map) Map {
	out := make(Map, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// AsNum extracts a float64 from a Value. Returns false for non-numeric values.
func AsNum(v Value) (float64, bool) {
	n, ok := v.(Num)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

// AsString extracts a string from a Value. Returns false for non-string values.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	if !ok {
		return "", false
	}
	return string(s), true
}

// AsBool extracts a bool from a Value. Returns false for non-bool values.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	if !ok {
		return false, false
	}
	return bool(b), true
}

// Strings extracts a []string from a List of Strings. Non-string elements
// are skipped.
func Strings(v Value) []string {
	list, ok := v.(List)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		if s, ok := elem.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// Equal reports deep equality of two Values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		_, isNull := b.(Null)
		return b == nil || isNull
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Num:
		bv, ok := b.(Num)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, ok := bv[k]
			if !ok || !Equal(elem, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
