// Package engine is the consumer surface of the style engine: stylesheets,
// render passes with scoped themes and variant selections, and nodes mounted
// against them that restyle themselves when the runtime state changes.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"mosaic-style/internal/binding"
	"mosaic-style/internal/registry"
	"mosaic-style/internal/state"
	"mosaic-style/internal/theme"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	breakpoints []state.Breakpoint
	flush       func(binding.Report)
	adaptive    bool
}

// WithLogger sets the engine logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBreakpoints overrides the width breakpoints used by the state store.
func WithBreakpoints(table []state.Breakpoint) Option {
	return func(o *options) { o.breakpoints = table }
}

// WithFlush installs a hook run once after each state change that restyled
// at least one node.
func WithFlush(fn func(binding.Report)) Option {
	return func(o *options) { o.flush = fn }
}

// WithAdaptiveThemes makes the ambient theme follow the color scheme through
// the catalog's adaptive pair.
func WithAdaptiveThemes() Option {
	return func(o *options) { o.adaptive = true }
}

// Engine ties the runtime state store, the theme catalog, the style registry
// and the binding table together. One engine serves one UI tree.
type Engine struct {
	catalog  *theme.Catalog
	store    *state.Store
	registry *registry.Registry
	table    *binding.Table
	logger   *slog.Logger

	adaptive atomic.Bool
	cleanup  []func()
}

// New builds an engine. The initial snapshot may name its theme by
// ThemeName only; with adaptive themes or no theme at all, the catalog's
// adaptive theme for the color scheme is used.
func New(catalog *theme.Catalog, initial state.Snapshot, opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if catalog == nil {
		catalog = theme.NewCatalog()
	}

	e := &Engine{
		catalog:  catalog,
		registry: registry.New(),
		logger:   o.logger,
	}
	e.adaptive.Store(o.adaptive)
	snap, err := e.normalize(initial)
	if err != nil {
		return nil, err
	}

	var storeOpts []state.Option
	if len(o.breakpoints) > 0 {
		storeOpts = append(storeOpts, state.WithBreakpoints(o.breakpoints))
	}
	e.store = state.NewStore(snap, storeOpts...)

	tableOpts := []binding.Option{binding.WithLogger(o.logger)}
	if o.flush != nil {
		tableOpts = append(tableOpts, binding.WithFlush(o.flush))
	}
	e.table = binding.NewTable(e.registry, catalog, e.store.Snapshot, tableOpts...)

	e.cleanup = append(e.cleanup,
		e.store.Subscribe(state.FactAll, e.table.Listener()),
		e.registry.OnReplace(e.recipeReplaced),
		catalog.OnChange(e.themeRedefined),
	)
	return e, nil
}

// Close detaches the engine from the shared catalog. Mounted nodes keep
// their last payload.
func (e *Engine) Close() {
	for _, fn := range e.cleanup {
		fn()
	}
	e.cleanup = nil
}

// Catalog returns the theme catalog the engine resolves names against.
func (e *Engine) Catalog() *theme.Catalog { return e.catalog }

// Snapshot returns the current runtime snapshot.
func (e *Engine) Snapshot() state.Snapshot { return e.store.Snapshot() }

// Subscribe registers fn for changes to any fact in mask.
func (e *Engine) Subscribe(mask state.Fact, fn state.Listener) func() {
	return e.store.Subscribe(mask, fn)
}

// Publish replaces the runtime snapshot and restyles every affected node
// before returning.
func (e *Engine) Publish(next state.Snapshot) (state.Fact, error) {
	snap, err := e.normalize(next)
	if err != nil {
		return state.FactNone, configError(err)
	}
	return e.store.Publish(snap), nil
}

// Update publishes fn applied to the current snapshot. The read and the
// publish are atomic with respect to other writers; fn may run more than
// once.
func (e *Engine) Update(fn func(state.Snapshot) state.Snapshot) (state.Fact, error) {
	var err error
	changed := e.store.Update(func(s state.Snapshot) state.Snapshot {
		next, nerr := e.normalize(fn(s))
		err = nerr
		if nerr != nil {
			return s
		}
		return next
	})
	if err != nil {
		return state.FactNone, configError(err)
	}
	return changed, nil
}

// SetTheme makes name the ambient theme and leaves adaptive mode.
func (e *Engine) SetTheme(name string) (state.Fact, error) {
	th, err := e.catalog.Lookup(name)
	if err != nil {
		return state.FactNone, configError(err)
	}
	e.adaptive.Store(false)
	return e.Update(func(s state.Snapshot) state.Snapshot { return s.WithTheme(th) })
}

// SetColorScheme publishes a new ambient color scheme. In adaptive mode the
// ambient theme follows it.
func (e *Engine) SetColorScheme(scheme theme.Scheme) (state.Fact, error) {
	if !scheme.Valid() {
		return state.FactNone, configError(fmt.Errorf("%w: %q", theme.ErrUnknownScheme, scheme))
	}
	return e.Update(func(s state.Snapshot) state.Snapshot { return s.WithColorScheme(scheme) })
}

// SetAdaptive switches adaptive mode and republishes the ambient theme.
func (e *Engine) SetAdaptive(on bool) (state.Fact, error) {
	e.adaptive.Store(on)
	return e.Update(func(s state.Snapshot) state.Snapshot { return s })
}

// Adaptive reports whether the ambient theme follows the color scheme.
func (e *Engine) Adaptive() bool { return e.adaptive.Load() }

// Unmount removes a mounted node's binding. Unknown ids are ignored.
func (e *Engine) Unmount(id binding.ID) {
	e.table.Unbind(id)
}

// Stats returns binding table diagnostics.
func (e *Engine) Stats() binding.Stats { return e.table.Stats() }

// CreateStyleSheet registers recipe under id. Calling it again with the same
// id replaces the recipe and restyles every node mounted against it.
func (e *Engine) CreateStyleSheet(id string, recipe registry.Recipe, deps registry.Deps) (*StyleSheet, error) {
	h, err := e.registry.Register(id, recipe, deps)
	if err != nil {
		return nil, err
	}
	return &StyleSheet{engine: e, handle: h}, nil
}

// Begin starts a render pass against the current snapshot.
func (e *Engine) Begin() *Pass {
	return newPass(e)
}

func (e *Engine) normalize(snap state.Snapshot) (state.Snapshot, error) {
	if snap.ColorScheme == "" {
		snap.ColorScheme = theme.SchemeDark
	}
	if !snap.ColorScheme.Valid() {
		return snap, fmt.Errorf("%w: %q", theme.ErrUnknownScheme, snap.ColorScheme)
	}

	switch {
	case e.adaptive.Load() || (snap.ThemeName == "" && snap.Theme.Name == ""):
		th, err := e.catalog.Adaptive(snap.ColorScheme)
		if err != nil {
			return snap, err
		}
		return snap.WithTheme(th), nil
	case snap.ThemeName != snap.Theme.Name:
		name := snap.ThemeName
		if name == "" {
			name = snap.Theme.Name
		}
		th, err := e.catalog.Lookup(name)
		if err != nil {
			return snap, err
		}
		return snap.WithTheme(th), nil
	}
	return snap, nil
}

func (e *Engine) recipeReplaced(id string) {
	e.logger.Info("stylesheet replaced", "recipe", id)
	e.table.Refresh(binding.Event{Recipe: id})
}

// themeRedefined runs on whichever goroutine registered th or changed the
// adaptive pair, typically a theme file watcher, concurrently with the
// host's own updates.
func (e *Engine) themeRedefined(th theme.Theme) {
	e.logger.Info("theme redefined", "theme", th.Name)
	e.store.Update(func(s state.Snapshot) state.Snapshot {
		if e.adaptive.Load() {
			next, err := e.normalize(s)
			if err != nil {
				return s
			}
			return next
		}
		if s.ThemeName != th.Name {
			return s
		}
		latest, err := e.catalog.Lookup(th.Name)
		if err != nil {
			return s
		}
		return s.WithTheme(latest)
	})
	e.table.Refresh(binding.Event{Themes: []string{th.Name}})
}
