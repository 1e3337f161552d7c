// Package variant resolves variant blocks against a caller's selection.
package variant

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"mosaic-style/internal/style"
)

// DefaultKey names the sub-style used when a group has no selection.
const DefaultKey = "default"

// ErrInvalidSelection is returned for selection values that are neither a
// string nor a boolean.
var ErrInvalidSelection = errors.New("variant selection must be a string or boolean")

// Group is a set of mutually exclusive sub-styles keyed by selector. Boolean
// groups use the keys "true" and "false".
type Group map[string]style.Style

// Compound applies Style when every group named in When carries the given
// explicit selection.
type Compound struct {
	When  map[string]any
	Style style.Style
}

// Block is the variants section of a style entry.
type Block struct {
	Groups   map[string]Group
	Compound []Compound
}

// Empty reports whether the block defines nothing.
func (b Block) Empty() bool { return len(b.Groups) == 0 && len(b.Compound) == 0 }

// Selection is the active variant choice for a render scope. The zero
// Selection means no selection was ever made, which is different from an
// empty one: only an explicit selection applies default sub-styles.
type Selection struct {
	values map[string]any
	active bool
}

// Select builds an explicit selection. A nil or empty map still counts as a
// selection. A nil value for a group means the group is unspecified.
func Select(values map[string]any) Selection {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Selection{values: copied, active: true}
}

// Active reports whether the selection was explicitly made.
func (s Selection) Active() bool { return s.active }

// Value returns the value selected for group.
func (s Selection) Value(group string) (any, bool) {
	v, ok := s.values[group]
	return v, ok
}

// Equal reports whether two selections are interchangeable.
func (s Selection) Equal(other Selection) bool {
	if s.active != other.active || len(s.values) != len(other.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := other.values[k]
		if !ok || !reflect.DeepEqual(ov, v) {
			return false
		}
	}
	return true
}

func (s Selection) String() string {
	if !s.active {
		return "<none>"
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%v", k, s.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Resolve returns the properties the block contributes for sel.
//
// An inactive selection contributes nothing at all. Otherwise, for each group:
// an absent or nil selection uses the group's default sub-style if present;
// a boolean looks up exactly "true" or "false" and never falls back to the
// default; a string looks up exactly that key. Unmatched combinations
// contribute nothing. Groups are merged in name order, then compound
// variants in declaration order.
func Resolve(block Block, sel Selection) (style.Style, error) {
	if !sel.active {
		return nil, nil
	}

	names := make([]string, 0, len(block.Groups))
	for name := range block.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	layers := make([]style.Style, 0, len(names)+len(block.Compound))
	for _, name := range names {
		layer, err := resolveGroup(block.Groups[name], name, sel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		layers = append(layers, layer)
	}
	for _, c := range block.Compound {
		if compoundMatches(c, sel) {
			layers = append(layers, c.Style)
		}
	}

	return style.Merge(layers...), errors.Join(errs...)
}

func resolveGroup(g Group, name string, sel Selection) (style.Style, error) {
	v, ok := sel.values[name]
	if !ok || v == nil {
		return g[DefaultKey], nil
	}
	switch v := v.(type) {
	case bool:
		return g[strconv.FormatBool(v)], nil
	case string:
		return g[v], nil
	default:
		return nil, fmt.Errorf("%w: group %q got %T", ErrInvalidSelection, name, v)
	}
}

func compoundMatches(c Compound, sel Selection) bool {
	if len(c.When) == 0 {
		return false
	}
	for group, want := range c.When {
		got, ok := sel.values[group]
		if !ok || got == nil {
			return false
		}
		if !selectorEqual(want, got) {
			return false
		}
	}
	return true
}

func selectorEqual(a, b any) bool {
	as, aok := selectorString(a)
	bs, bok := selectorString(b)
	return aok && bok && as == bs
}

func selectorString(v any) (string, bool) {
	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v), true
	case string:
		return v, true
	default:
		return "", false
	}
}
