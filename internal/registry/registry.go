// Package registry stores compiled style recipes together with the declared
// dependency set of every style key.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"mosaic-style/internal/state"
	"mosaic-style/internal/style"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

var (
	ErrInvalidRecipe     = errors.New("invalid recipe")
	ErrUnknownRecipe     = errors.New("unknown recipe")
	ErrUnknownKey        = errors.New("unknown style key")
	ErrNotDynamic        = errors.New("style key does not take arguments")
	ErrRecipeFailed      = errors.New("recipe failed")
	ErrUnserializableArg = errors.New("dynamic style argument is not serializable")
)

// DynamicFunc computes a style from caller-supplied serializable arguments.
type DynamicFunc func(args ...any) style.Style

// Entry is the value a recipe produces for one style key: a static style, a
// dynamic function, or a static style with a variant block.
type Entry struct {
	Style    style.Style
	Dynamic  DynamicFunc
	Variants variant.Block
}

// Static wraps a plain style.
func Static(s style.Style) Entry { return Entry{Style: s} }

// Dynamic wraps a parameterized style.
func Dynamic(fn DynamicFunc) Entry { return Entry{Dynamic: fn} }

// WithVariants wraps a base style and its variant groups.
func WithVariants(base style.Style, block variant.Block) Entry {
	return Entry{Style: base, Variants: block}
}

// Sheet maps style keys to entries.
type Sheet map[string]Entry

// Recipe builds a sheet from the effective theme and runtime snapshot. It
// must be pure in those two inputs.
type Recipe func(t theme.Theme, rt state.Snapshot) Sheet

// Deps is the declared dependency set per style key. Keys without an entry
// have the empty set.
type Deps map[string]state.Fact

// Handle identifies a registered recipe. It stays valid across hot swaps of
// the same id.
type Handle struct {
	id string
}

// ID returns the recipe id.
func (h Handle) ID() string { return h.id }

type record struct {
	recipe   Recipe
	deps     Deps
	revision uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*record
	listeners map[int]func(id string)
	nextID    int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		records:   make(map[string]*record),
		listeners: make(map[int]func(id string)),
	}
}

// Register stores recipe under id. Registering an id again replaces the
// recipe and its declarations atomically and notifies OnReplace listeners
// once, so that bindings using it are recomputed.
func (r *Registry) Register(id string, recipe Recipe, deps Deps) (Handle, error) {
	if id == "" {
		return Handle{}, fmt.Errorf("%w: empty id", ErrInvalidRecipe)
	}
	if recipe == nil {
		return Handle{}, fmt.Errorf("%w: %s: nil recipe", ErrInvalidRecipe, id)
	}
	copied := make(Deps, len(deps))
	for k, v := range deps {
		copied[k] = v
	}

	r.mu.Lock()
	prev, replaced := r.records[id]
	rec := &record{recipe: recipe, deps: copied, revision: 1}
	if replaced {
		rec.revision = prev.revision + 1
	}
	r.records[id] = rec
	var listeners []func(string)
	if replaced {
		ids := make([]int, 0, len(r.listeners))
		for lid := range r.listeners {
			ids = append(ids, lid)
		}
		sort.Ints(ids)
		for _, lid := range ids {
			listeners = append(listeners, r.listeners[lid])
		}
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return Handle{id: id}, nil
}

// OnReplace registers fn to run after a recipe is re-registered. The returned
// function removes the listener.
func (r *Registry) OnReplace(fn func(id string)) func() {
	r.mu.Lock()
	lid := r.nextID
	r.nextID++
	r.listeners[lid] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, lid)
		r.mu.Unlock()
	}
}

// Lookup returns the handle registered under id.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return Handle{id: id}, ok
}

// Revision reports how many times h has been registered.
func (r *Registry) Revision(h Handle) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[h.id]; ok {
		return rec.revision
	}
	return 0
}

// Deps returns the declared dependency set of key.
func (r *Registry) Deps(h Handle, key string) state.Fact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[h.id]
	if !ok {
		return state.FactNone
	}
	return rec.deps[key]
}

// Evaluate runs the recipe for the given theme and snapshot. The result owns
// the dynamic-argument cache for one evaluation pass.
func (r *Registry) Evaluate(h Handle, t theme.Theme, snap state.Snapshot) (ev *Evaluation, err error) {
	r.mu.RLock()
	rec, ok := r.records[h.id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecipe, h.id)
	}

	defer func() {
		if p := recover(); p != nil {
			ev = nil
			err = fmt.Errorf("%w: %s: %v", ErrRecipeFailed, h.id, p)
		}
	}()
	sheet := rec.recipe(t, snap)
	return &Evaluation{
		recipeID:  h.id,
		revision:  rec.revision,
		themeName: t.Name,
		sheet:     sheet,
		cache:     make(map[uint64][]cachedCall),
	}, nil
}

// Resolved is a style key's value for one evaluation: the base style and any
// variant block still to be applied against a selection.
type Resolved struct {
	Style    style.Style
	Variants variant.Block
}

// Evaluation is the result of running a recipe once. Dynamic results are
// cached per distinct argument tuple for the lifetime of the evaluation.
type Evaluation struct {
	recipeID  string
	revision  uint64
	themeName string
	sheet     Sheet

	mu    sync.Mutex
	cache map[uint64][]cachedCall
	calls int
}

// RecipeID returns the id of the evaluated recipe.
func (e *Evaluation) RecipeID() string { return e.recipeID }

// ThemeName returns the name of the theme the recipe was evaluated with.
func (e *Evaluation) ThemeName() string { return e.themeName }

// Revision returns the recipe revision that was evaluated.
func (e *Evaluation) Revision() uint64 { return e.revision }

// Keys returns the style keys the recipe produced, sorted.
func (e *Evaluation) Keys() []string {
	keys := make([]string, 0, len(e.sheet))
	for k := range e.sheet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DynamicCalls reports how many times a dynamic function actually ran.
func (e *Evaluation) DynamicCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Resolve returns the value of key. Arguments are only accepted for dynamic
// entries and must be serializable.
func (e *Evaluation) Resolve(key string, args ...any) (Resolved, error) {
	entry, ok := e.sheet[key]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %s.%s", ErrUnknownKey, e.recipeID, key)
	}
	if entry.Dynamic == nil {
		if len(args) > 0 {
			return Resolved{}, fmt.Errorf("%w: %s.%s", ErrNotDynamic, e.recipeID, key)
		}
		return Resolved{Style: entry.Style, Variants: entry.Variants}, nil
	}

	for i, arg := range args {
		if err := style.CheckSerializable(arg); err != nil {
			return Resolved{}, fmt.Errorf("%w: %s.%s arg %d: %v", ErrUnserializableArg, e.recipeID, key, i, err)
		}
	}
	s, err := e.dynamic(key, entry.Dynamic, args)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Style: s, Variants: entry.Variants}, nil
}

type argTuple struct {
	Key  string
	Args []any
}

// cachedCall is one memoized dynamic result. The hash only picks the
// bucket; distinct tuples can share it, so hits compare the tuple too.
type cachedCall struct {
	tuple argTuple
	style style.Style
}

func (e *Evaluation) dynamic(key string, fn DynamicFunc, args []any) (s style.Style, err error) {
	tuple := argTuple{Key: key, Args: append([]any(nil), args...)}
	sum, err := hashstructure.Hash(tuple, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrUnserializableArg, e.recipeID, key, err)
	}

	e.mu.Lock()
	for _, c := range e.cache[sum] {
		if reflect.DeepEqual(c.tuple, tuple) {
			e.mu.Unlock()
			return c.style, nil
		}
	}
	e.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s = nil
			err = fmt.Errorf("%w: %s.%s: %v", ErrRecipeFailed, e.recipeID, key, p)
		}
	}()
	s = fn(args...)

	e.mu.Lock()
	e.cache[sum] = append(e.cache[sum], cachedCall{tuple: tuple, style: s})
	e.calls++
	e.mu.Unlock()
	return s, nil
}
