// Package binding associates mounted style usage sites with the nodes they
// control and pushes recomputed payloads to those nodes when the state they
// depend on changes.
package binding

import (
	"errors"
	"fmt"
	"reflect"

	"mosaic-style/internal/registry"
	"mosaic-style/internal/scope"
	"mosaic-style/internal/style"
	"mosaic-style/internal/variant"
)

var (
	// ErrDetached is returned by a node that has been torn down natively.
	ErrDetached = errors.New("node detached")
	// ErrNodeInUse is returned when a node already belongs to a live binding.
	ErrNodeInUse = errors.New("node already bound")
	// ErrNodeNotComparable is returned for node types that cannot serve as a
	// map key, such as slices, maps and funcs.
	ErrNodeNotComparable = errors.New("node type is not comparable")
	// ErrUnknownBinding is returned for ids that are not bound.
	ErrUnknownBinding = errors.New("unknown binding")
)

// Node is the native visual node a binding writes to. Its dynamic type must
// be comparable, which in practice means a pointer. WriteStyle must not call
// back into the table that owns the binding.
type Node interface {
	WriteStyle(payload style.Style) error
}

// ID identifies a binding. The zero ID is never issued.
type ID uint64

// State is a binding's lifecycle state.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateRecomputePending
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateRecomputePending:
		return "recompute-pending"
	default:
		return "unbound"
	}
}

// Use is one style key applied to a node, with its arguments when the key is
// a dynamic function.
type Use struct {
	Key  string
	Args []any
}

// Key builds a Use.
func Key(key string, args ...any) Use {
	return Use{Key: key, Args: args}
}

func (u Use) equal(other Use) bool {
	return u.Key == other.Key && reflect.DeepEqual(u.Args, other.Args)
}

// Target describes what a binding renders: which recipe, which keys (merged
// in order, later keys win), the variant selection of the render scope and
// the scoped theme chain it was rendered under.
type Target struct {
	Recipe    registry.Handle
	Uses      []Use
	Selection variant.Selection
	Chain     scope.Chain
}

func usesEqual(a, b []Use) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

// ResolveError reports configuration problems met while computing a
// binding's payload. The payload is still written with the affected keys
// contributing no properties.
type ResolveError struct {
	Binding ID
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("binding %d: %v", e.Binding, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
