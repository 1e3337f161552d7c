package engine

import (
	"errors"
	"fmt"

	"mosaic-style/internal/binding"
	"mosaic-style/internal/registry"
	"mosaic-style/internal/scope"
	"mosaic-style/internal/state"
	"mosaic-style/internal/style"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

// StyleSheet is a registered recipe.
type StyleSheet struct {
	engine *Engine
	handle registry.Handle
}

// ID returns the stylesheet id.
func (s *StyleSheet) ID() string { return s.handle.ID() }

// UseVariants sets the variant selection for this stylesheet in the current
// render scope of p. Keys resolved without any call get no variant
// properties at all; an empty selection applies every group's default.
func (s *StyleSheet) UseVariants(p *Pass, selection map[string]any) {
	p.mustBeActive()
	p.selections[s.handle.ID()] = variant.Select(selection)
}

// Style resolves key for the current render scope of p. On a configuration
// error the key contributes an empty style and a *ConfigError is returned.
// A malformed variant selection still returns the base style.
func (s *StyleSheet) Style(p *Pass, key string, args ...any) (style.Style, error) {
	p.mustBeActive()

	deps := s.engine.registry.Deps(s.handle, key)
	th, err := p.stack.EffectiveTheme(p.snap)
	if err != nil {
		if deps.Has(state.FactTheme) {
			return style.Style{}, p.fail(s, err)
		}
		th = p.snap.Theme
	}

	ev, err := p.evaluation(s.handle, th)
	if err != nil {
		return style.Style{}, p.fail(s, err)
	}
	r, err := ev.Resolve(key, args...)
	if err != nil {
		return style.Style{}, p.fail(s, err)
	}
	if r.Variants.Empty() {
		return style.Merge(r.Style), nil
	}
	v, err := variant.Resolve(r.Variants, p.selection(s))
	if err != nil {
		return style.Merge(r.Style, v), p.fail(s, err)
	}
	return style.Merge(r.Style, v), nil
}

type passKey struct {
	recipe string
	theme  theme.Theme
}

// Pass is one render pass. It carries the scoped theme stack and variant
// selections of the path being rendered and must be used from one goroutine.
// Every scope entered must be left before End.
type Pass struct {
	engine     *Engine
	snap       state.Snapshot
	stack      *scope.Stack
	selections map[string]variant.Selection
	evals      map[passKey]*registry.Evaluation
	ended      bool
}

func newPass(e *Engine) *Pass {
	return &Pass{
		engine:     e,
		snap:       e.store.Snapshot(),
		stack:      scope.NewStack(e.catalog),
		selections: make(map[string]variant.Selection),
		evals:      make(map[passKey]*registry.Evaluation),
	}
}

// Snapshot returns the snapshot the pass renders against.
func (p *Pass) Snapshot() state.Snapshot { return p.snap }

// Theme returns the effective theme of the current scope.
func (p *Pass) Theme() (theme.Theme, error) {
	th, err := p.stack.EffectiveTheme(p.snap)
	if err != nil {
		return p.snap.Theme, configError(err)
	}
	return th, nil
}

// Push enters a scoped theme frame. Prefer WithTheme; Push exists for
// renderers that walk trees without closures. The frame is entered even
// when a *ConfigError is returned.
func (p *Pass) Push(f scope.Frame) error {
	p.mustBeActive()
	if err := p.stack.Push(f); err != nil {
		return p.fail(nil, err)
	}
	return nil
}

// Pop leaves the innermost scoped theme frame.
func (p *Pass) Pop() {
	p.mustBeActive()
	p.stack.Pop()
}

// WithTheme renders fn inside the scoped theme frame f and leaves it again,
// even if fn panics. fn runs even when f is misconfigured; the error is
// returned afterwards.
func (p *Pass) WithTheme(f scope.Frame, fn func()) error {
	p.mustBeActive()
	if err := p.stack.Within(f, fn); err != nil {
		return p.fail(nil, err)
	}
	return nil
}

// Scope renders fn with its own variant selections; selections made inside
// do not leak to siblings rendered after it.
func (p *Pass) Scope(fn func()) {
	p.mustBeActive()
	saved := make(map[string]variant.Selection, len(p.selections))
	for k, v := range p.selections {
		saved[k] = v
	}
	defer func() { p.selections = saved }()
	fn()
}

// Mount binds node to the given keys of sheet under the current scope and
// selection and writes the first payload. The id is usable when the error
// is a *ConfigError.
func (p *Pass) Mount(node binding.Node, sheet *StyleSheet, uses ...binding.Use) (binding.ID, error) {
	p.mustBeActive()
	id, err := p.engine.table.Bind(node, p.target(sheet, uses))
	if err != nil {
		if id == 0 {
			return 0, err
		}
		return id, configError(err)
	}
	return id, nil
}

// Update re-renders a mounted node. The node is restyled only when its
// keys, selection or scope changed.
func (p *Pass) Update(id binding.ID, sheet *StyleSheet, uses ...binding.Use) error {
	p.mustBeActive()
	if err := p.engine.table.Rebind(id, p.target(sheet, uses)); err != nil {
		var rerr *binding.ResolveError
		if errors.As(err, &rerr) {
			return configError(err)
		}
		return err
	}
	return nil
}

// End finishes the pass. Ending with scopes still entered is a broken
// renderer and panics.
func (p *Pass) End() {
	p.mustBeActive()
	if depth := p.stack.Depth(); depth != 0 {
		panic(fmt.Sprintf("engine: render pass ended with %d scoped theme frame(s) still entered", depth))
	}
	p.ended = true
}

func (p *Pass) target(sheet *StyleSheet, uses []binding.Use) binding.Target {
	return binding.Target{
		Recipe:    sheet.handle,
		Uses:      append([]binding.Use(nil), uses...),
		Selection: p.selection(sheet),
		Chain:     p.stack.Capture(),
	}
}

func (p *Pass) selection(sheet *StyleSheet) variant.Selection {
	return p.selections[sheet.handle.ID()]
}

func (p *Pass) evaluation(h registry.Handle, th theme.Theme) (*registry.Evaluation, error) {
	key := passKey{recipe: h.ID(), theme: th}
	if ev, ok := p.evals[key]; ok && ev.Revision() == p.engine.registry.Revision(h) {
		return ev, nil
	}
	ev, err := p.engine.registry.Evaluate(h, th, p.snap)
	if err != nil {
		return nil, err
	}
	p.evals[key] = ev
	return ev, nil
}

func (p *Pass) fail(sheet *StyleSheet, err error) error {
	ce := configError(err)
	attrs := []any{"error", err}
	if sheet != nil {
		attrs = append(attrs, "stylesheet", sheet.ID())
	}
	p.engine.logger.Warn("style configuration error", attrs...)
	return ce
}

func (p *Pass) mustBeActive() {
	if p.ended {
		panic("engine: render pass used after End")
	}
}
