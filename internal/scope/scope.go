// Package scope implements the per-render-pass stack of scoped theme
// overrides.
package scope

import (
	"errors"
	"fmt"

	"mosaic-style/internal/state"
	"mosaic-style/internal/theme"
)

// ErrConflictingOverride is returned when a frame names a theme and also asks
// for the inverted adaptive theme.
var ErrConflictingOverride = errors.New("scoped frame cannot name a theme and invert the adaptive theme")

// Frame is one scoped theme override.
type Frame struct {
	Theme            string
	InvertedAdaptive bool
	Reset            bool
}

// NewFrame validates and builds a frame.
func NewFrame(themeName string, invertedAdaptive, reset bool) (Frame, error) {
	f := Frame{Theme: themeName, InvertedAdaptive: invertedAdaptive, Reset: reset}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Named overrides the theme for a subtree.
func Named(name string) Frame { return Frame{Theme: name} }

// Inverted applies the adaptive theme of the opposite color scheme.
func Inverted() Frame { return Frame{InvertedAdaptive: true} }

// ResetFrame restores the ambient theme for a subtree.
func ResetFrame() Frame { return Frame{Reset: true} }

// Validate rejects mutually exclusive settings.
func (f Frame) Validate() error {
	if f.Theme != "" && f.InvertedAdaptive {
		return fmt.Errorf("%w: %q", ErrConflictingOverride, f.Theme)
	}
	return nil
}

// Catalog is the theme lookup a chain resolves against.
type Catalog interface {
	Lookup(name string) (theme.Theme, error)
	Adaptive(scheme theme.Scheme) (theme.Theme, error)
}

// Chain is an immutable copy of the frames that can influence resolution:
// everything above the nearest reset frame, inclusive.
type Chain struct {
	frames []Frame
}

// Len returns the number of frames in the chain.
func (c Chain) Len() int { return len(c.frames) }

// Top returns the frame that decides resolution, if any.
func (c Chain) Top() (Frame, bool) {
	if len(c.frames) == 0 {
		return Frame{}, false
	}
	return c.frames[len(c.frames)-1], true
}

// Inverted reports whether resolution depends on the ambient color scheme.
func (c Chain) Inverted() bool {
	top, ok := c.Top()
	return ok && top.InvertedAdaptive
}

// Equal reports whether two chains resolve identically for any snapshot.
func (c Chain) Equal(other Chain) bool {
	a, aok := c.Top()
	b, bok := other.Top()
	return aok == bok && a == b
}

// Resolve returns the effective theme for the chain given the ambient
// snapshot. Only the topmost frame matters: a misconfigured frame fails,
// a reset frame or an empty chain
// yields the ambient theme, a named frame yields that theme, and an inverted
// frame yields the adaptive theme of the flipped ambient scheme, evaluated
// now rather than when the frame was pushed.
func (c Chain) Resolve(catalog Catalog, snap state.Snapshot) (theme.Theme, error) {
	top, ok := c.Top()
	if !ok {
		return snap.Theme, nil
	}
	if err := top.Validate(); err != nil {
		return theme.Theme{}, err
	}
	if top.Reset {
		return snap.Theme, nil
	}
	if top.InvertedAdaptive {
		return catalog.Adaptive(snap.ColorScheme.Flip())
	}
	return catalog.Lookup(top.Theme)
}

// Stack is the scoped theme stack for one render pass. It reflects only the
// path currently being rendered and is not safe for concurrent use.
type Stack struct {
	frames  []Frame
	catalog Catalog
}

// NewStack returns an empty stack resolving names against catalog.
func NewStack(catalog Catalog) *Stack {
	return &Stack{catalog: catalog}
}

// Push enters a scope. The frame is pushed even when it fails validation or
// names an unknown theme so that the matching Pop stays balanced; the error
// is returned to the caller and resolution under the frame fails.
func (s *Stack) Push(f Frame) error {
	s.frames = append(s.frames, f)
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Theme != "" && !f.Reset {
		if _, err := s.catalog.Lookup(f.Theme); err != nil {
			return err
		}
	}
	return nil
}

// Pop leaves the innermost scope. Popping an empty stack is a broken caller
// contract and panics.
func (s *Stack) Pop() {
	if len(s.frames) == 0 {
		panic("scope: pop on empty stack")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int { return len(s.frames) }

// Within pushes f, runs fn and pops, even if fn panics.
func (s *Stack) Within(f Frame, fn func()) error {
	err := s.Push(f)
	defer s.Pop()
	fn()
	return err
}

// Capture returns the chain of frames from the nearest reset point.
func (s *Stack) Capture() Chain {
	start := 0
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Reset {
			start = i
			break
		}
	}
	frames := make([]Frame, len(s.frames)-start)
	copy(frames, s.frames[start:])
	return Chain{frames: frames}
}

// EffectiveTheme resolves the current stack against the ambient snapshot.
func (s *Stack) EffectiveTheme(snap state.Snapshot) (theme.Theme, error) {
	return s.Capture().Resolve(s.catalog, snap)
}
