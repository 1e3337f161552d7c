// Package style defines the payload written to bound nodes.
package style

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrUnserializable is returned when a value cannot cross the native boundary.
var ErrUnserializable = errors.New("value is not serializable")

// Style is a flat mapping of property name to value. A nil Style contributes
// no properties.
type Style map[string]any

// Merge layers styles left to right; later properties win.
func Merge(layers ...Style) Style {
	n := 0
	for _, l := range layers {
		n += len(l)
	}
	if n == 0 {
		return Style{}
	}
	out := make(Style, n)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy of s.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the property names in sorted order.
func (s Style) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two styles carry the same properties.
func Equal(a, b Style) bool {
	if len(a) != len(b) {
		return false
	}
	return reflect.DeepEqual(map[string]any(a), map[string]any(b))
}

// Empty reports whether s contributes no properties.
func (s Style) Empty() bool { return len(s) == 0 }

// CheckSerializable verifies v belongs to the primitive/array/object value
// domain: nil, booleans, numbers, strings, slices and arrays of those, and
// string-keyed maps of those.
func CheckSerializable(v any) error {
	return checkValue(reflect.ValueOf(v), 0)
}

const maxDepth = 32

func checkValue(v reflect.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnserializable, maxDepth)
	}
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkValue(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key %s", ErrUnserializable, v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Value(), depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnserializable, v.Type())
	}
}
