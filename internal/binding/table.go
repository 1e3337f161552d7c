package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"mosaic-style/internal/registry"
	"mosaic-style/internal/scope"
	"mosaic-style/internal/state"
	"mosaic-style/internal/style"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

// Event is one change the table must react to. Facts and Snapshot come from
// the state store; Recipe names a recipe that was re-registered; Themes
// names catalog entries that were redefined.
type Event struct {
	Facts    state.Fact
	Snapshot state.Snapshot
	Recipe   string
	Themes   []string
}

// Report summarizes the processing of one event.
type Report struct {
	Seq      uint64
	Affected int
	Written  int
	Dropped  int
}

// Stats are cumulative counters for a table.
type Stats struct {
	Bound      int
	Recomputes uint64
	Writes     uint64
	Dropped    uint64
	Errors     uint64
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used for dropped writes and resolution errors.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithFlush installs a hook that runs once after every event that wrote at
// least one payload, letting hosts coalesce their repaint.
func WithFlush(fn func(Report)) Option {
	return func(t *Table) { t.onFlush = fn }
}

type frozenUse struct {
	use      Use
	resolved registry.Resolved
}

// binding fields other than target are guarded by mu. target is replaced
// only while the table's eventMu is held as well.
type binding struct {
	id   ID
	node Node

	mu       sync.Mutex
	target   Target
	deps     state.Fact
	live     bool
	state    State
	applied  uint64
	revision uint64
	frozen   map[int]frozenUse
}

// Table maps binding ids to nodes and their render targets and dispatches
// recomputation. Events are processed one at a time in the order they are
// handed to the table, and every affected binding is brought up to date
// before the next event starts. Recipes run with no table lock held, so a
// recipe may unbind nodes; binding new nodes from inside a recipe deadlocks.
type Table struct {
	registry *registry.Registry
	catalog  scope.Catalog
	source   func() state.Snapshot
	logger   *slog.Logger
	onFlush  func(Report)

	eventMu sync.Mutex
	seq     uint64

	mu       sync.Mutex
	bindings map[ID]*binding
	nodes    map[Node]ID
	nextID   ID

	recomputes atomic.Uint64
	writes     atomic.Uint64
	dropped    atomic.Uint64
	errors     atomic.Uint64
}

// NewTable returns an empty table resolving recipes from reg and scoped
// themes from catalog. source returns the current snapshot; it is read when
// a binding is created or rebound.
func NewTable(reg *registry.Registry, catalog scope.Catalog, source func() state.Snapshot, opts ...Option) *Table {
	t := &Table{
		registry: reg,
		catalog:  catalog,
		source:   source,
		logger:   slog.Default(),
		bindings: make(map[ID]*binding),
		nodes:    make(map[Node]ID),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bind creates a binding for node, computes its payload against the current
// snapshot and writes it. A node may belong to at most one live binding.
// When only style resolution failed the binding is still created, the returned id is usable
// and the error is a *ResolveError.
func (t *Table) Bind(node Node, target Target) (ID, error) {
	if node == nil {
		return 0, errors.New("binding: nil node")
	}
	if typ := reflect.TypeOf(node); !typ.Comparable() {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotComparable, typ)
	}

	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	t.mu.Lock()
	if id, ok := t.nodes[node]; ok {
		t.mu.Unlock()
		return 0, fmt.Errorf("%w: binding %d", ErrNodeInUse, id)
	}
	t.nextID++
	b := &binding{
		id:     t.nextID,
		node:   node,
		target: target,
		live:   true,
		state:  StateRecomputePending,
		frozen: make(map[int]frozenUse),
	}
	b.deps = t.maskFor(target)
	t.bindings[b.id] = b
	t.nodes[node] = b.id
	t.mu.Unlock()

	t.seq++
	payload, err := t.compute(b, t.source(), newEvalCache())
	t.write(b, t.seq, payload)
	return b.id, t.resolveErr(b, err)
}

// Rebind replaces the render target of a live binding, typically after a
// re-render. A binding whose target is unchanged is left alone; otherwise it
// is recomputed and written immediately.
func (t *Table) Rebind(id ID, target Target) error {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	b, ok := t.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}

	b.mu.Lock()
	old := b.target
	if old.Recipe == target.Recipe && usesEqual(old.Uses, target.Uses) &&
		old.Selection.Equal(target.Selection) && old.Chain.Equal(target.Chain) {
		b.mu.Unlock()
		return nil
	}
	if old.Recipe != target.Recipe {
		b.frozen = make(map[int]frozenUse)
	}
	b.target = target
	b.deps = t.maskFor(target)
	b.state = StateRecomputePending
	b.mu.Unlock()

	t.seq++
	payload, err := t.compute(b, t.source(), newEvalCache())
	t.write(b, t.seq, payload)
	return t.resolveErr(b, err)
}

// Unbind removes a binding. Writes already computed for it are discarded.
// Unbinding an unknown id is a no-op. Unbind may be called from any
// goroutine, including from inside a recipe during dispatch.
func (t *Table) Unbind(id ID) {
	t.mu.Lock()
	b, ok := t.bindings[id]
	if ok {
		delete(t.bindings, id)
		if t.nodes[b.node] == id {
			delete(t.nodes, b.node)
		}
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	b.live = false
	b.state = StateUnbound
	b.frozen = nil
	b.mu.Unlock()
}

// State returns the lifecycle state of id; unknown ids are unbound.
func (t *Table) State(id ID) State {
	b, ok := t.lookup(id)
	if !ok {
		return StateUnbound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Mask returns the facts that can cause id to be recomputed.
func (t *Table) Mask(id ID) state.Fact {
	b, ok := t.lookup(id)
	if !ok {
		return state.FactNone
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return effectiveMask(b.deps, b.target.Chain)
}

// Len returns the number of live bindings.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bindings)
}

// Stats returns the cumulative counters.
func (t *Table) Stats() Stats {
	return Stats{
		Bound:      t.Len(),
		Recomputes: t.recomputes.Load(),
		Writes:     t.writes.Load(),
		Dropped:    t.dropped.Load(),
		Errors:     t.errors.Load(),
	}
}

// Listener adapts the table to a state store subscription.
func (t *Table) Listener() state.Listener {
	return func(next state.Snapshot, changed state.Fact) {
		t.Dispatch(Event{Facts: changed, Snapshot: next})
	}
}

// Dispatch recomputes every binding affected by ev and writes the new
// payloads. It returns once all of them have been written or dropped.
func (t *Table) Dispatch(ev Event) Report {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	return t.dispatch(ev)
}

// Refresh is Dispatch against the table's current source snapshot, read
// once the event lock is held. Events that do not come from the state store
// use it so they never restyle against a snapshot older than one already
// dispatched.
func (t *Table) Refresh(ev Event) Report {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	ev.Snapshot = t.source()
	return t.dispatch(ev)
}

func (t *Table) dispatch(ev Event) Report {
	t.seq++
	report := Report{Seq: t.seq}

	cache := newEvalCache()
	for _, b := range t.affected(ev) {
		report.Affected++
		payload, err := t.compute(b, ev.Snapshot, cache)
		if err != nil {
			_ = t.resolveErr(b, err)
		}
		if t.write(b, report.Seq, payload) {
			report.Written++
		} else {
			report.Dropped++
		}
	}

	if report.Affected > 0 {
		t.logger.Debug("binding dispatch",
			"seq", report.Seq,
			"facts", ev.Facts.String(),
			"recipe", ev.Recipe,
			"affected", report.Affected,
			"written", report.Written,
			"dropped", report.Dropped,
		)
	}
	if report.Written > 0 && t.onFlush != nil {
		t.onFlush(report)
	}
	return report
}

func (t *Table) lookup(id ID) (*binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bindings[id]
	return b, ok
}

// affected returns the live bindings that ev invalidates, in id order, and
// marks them pending.
func (t *Table) affected(ev Event) []*binding {
	t.mu.Lock()
	all := make([]*binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		all = append(all, b)
	}
	t.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })

	out := all[:0]
	for _, b := range all {
		b.mu.Lock()
		hit := b.live && invalidates(ev, b.target, b.deps)
		if hit {
			b.state = StateRecomputePending
		}
		b.mu.Unlock()
		if hit {
			out = append(out, b)
		}
	}
	return out
}

// invalidates decides whether ev touches a binding with the given target
// and declared dependencies.
func invalidates(ev Event, target Target, deps state.Fact) bool {
	if ev.Recipe != "" && target.Recipe.ID() == ev.Recipe {
		return true
	}
	if effectiveMask(deps, target.Chain).Intersects(ev.Facts) {
		return true
	}
	if len(ev.Themes) == 0 || !deps.Has(state.FactTheme) {
		return false
	}
	top, ok := target.Chain.Top()
	switch {
	case ok && top.InvertedAdaptive:
		return true
	case ok && top.Theme != "" && !top.Reset:
		return containsName(ev.Themes, top.Theme)
	default:
		// Ambient redefinitions arrive as store theme changes.
		return false
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// maskFor returns the union of the dependency sets of target's keys.
func (t *Table) maskFor(target Target) state.Fact {
	var mask state.Fact
	for _, u := range target.Uses {
		mask |= t.registry.Deps(target.Recipe, u.Key)
	}
	return mask
}

// effectiveMask narrows a binding's declared facts by its scope chain. A
// named scope pins the theme, so ambient theme changes do not reach it; an
// inverted scope follows the ambient color scheme instead of the ambient
// theme.
func effectiveMask(deps state.Fact, chain scope.Chain) state.Fact {
	if !deps.Has(state.FactTheme) {
		return deps
	}
	top, ok := chain.Top()
	switch {
	case ok && top.InvertedAdaptive:
		return deps&^state.FactTheme | state.FactColorScheme
	case ok && top.Theme != "" && !top.Reset:
		return deps &^ state.FactTheme
	default:
		return deps
	}
}

type evalKey struct {
	recipe string
	theme  theme.Theme
}

// evalCache holds recipe evaluations for one event so each (recipe,
// effective theme) pair runs once no matter how many bindings share it.
type evalCache struct {
	evals map[evalKey]*registry.Evaluation
	errs  map[evalKey]error
}

func newEvalCache() *evalCache {
	return &evalCache{
		evals: make(map[evalKey]*registry.Evaluation),
		errs:  make(map[evalKey]error),
	}
}

func (t *Table) evaluate(cache *evalCache, h registry.Handle, th theme.Theme, snap state.Snapshot) (*registry.Evaluation, error) {
	key := evalKey{recipe: h.ID(), theme: th}
	if ev, ok := cache.evals[key]; ok {
		return ev, nil
	}
	if err, ok := cache.errs[key]; ok {
		return nil, err
	}
	t.recomputes.Add(1)
	ev, err := t.registry.Evaluate(h, th, snap)
	if err != nil {
		cache.errs[key] = err
		return nil, err
	}
	cache.evals[key] = ev
	return ev, nil
}

// compute builds the payload for b: each use's base style followed by its
// resolved variants, merged in use order. Uses whose key declares no
// dependencies are resolved once and reused until the recipe changes.
// Problems are joined into the returned error; the affected uses contribute
// nothing to the payload.
func (t *Table) compute(b *binding, snap state.Snapshot, cache *evalCache) (style.Style, error) {
	b.mu.Lock()
	target := b.target
	revision := t.registry.Revision(target.Recipe)
	if revision != b.revision {
		b.frozen = make(map[int]frozenUse)
		b.revision = revision
		b.deps = t.maskFor(target)
	}
	frozen := make(map[int]frozenUse, len(b.frozen))
	for i, f := range b.frozen {
		frozen[i] = f
	}
	b.mu.Unlock()

	effective, themeErr := target.Chain.Resolve(t.catalog, snap)

	var errs []error
	if themeErr != nil {
		errs = append(errs, themeErr)
	}
	pieces := make([]style.Style, 0, len(target.Uses)*2)
	fresh := make(map[int]frozenUse)

	var ev *registry.Evaluation
	var evErr error
	evaluated := false

	for i, use := range target.Uses {
		deps := t.registry.Deps(target.Recipe, use.Key)

		var resolved registry.Resolved
		if f, ok := frozen[i]; ok && deps == state.FactNone && f.use.equal(use) {
			resolved = f.resolved
		} else {
			if deps.Has(state.FactTheme) && themeErr != nil {
				continue
			}
			if !evaluated {
				th := effective
				if themeErr != nil {
					th = snap.Theme
				}
				ev, evErr = t.evaluate(cache, target.Recipe, th, snap)
				evaluated = true
				if evErr != nil {
					errs = append(errs, evErr)
				}
			}
			if evErr != nil {
				continue
			}
			r, err := ev.Resolve(use.Key, use.Args...)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			resolved = r
			if deps == state.FactNone {
				fresh[i] = frozenUse{use: use, resolved: r}
			}
		}

		pieces = append(pieces, resolved.Style)
		if !resolved.Variants.Empty() {
			v, err := variant.Resolve(resolved.Variants, target.Selection)
			if err != nil {
				errs = append(errs, err)
			}
			pieces = append(pieces, v)
		}
	}

	if len(fresh) > 0 {
		b.mu.Lock()
		if b.live && b.revision == revision {
			for i, f := range fresh {
				b.frozen[i] = f
			}
		}
		b.mu.Unlock()
	}
	return style.Merge(pieces...), errors.Join(errs...)
}

// write hands payload to b's node unless b was unbound or already received
// a newer payload. It reports whether the node accepted the write.
func (t *Table) write(b *binding, seq uint64, payload style.Style) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live {
		t.drop(b, seq, "unbound")
		return false
	}
	if seq <= b.applied {
		t.drop(b, seq, "stale")
		return false
	}
	b.applied = seq
	b.state = StateBound

	if err := b.node.WriteStyle(payload); err != nil {
		if errors.Is(err, ErrDetached) {
			t.drop(b, seq, "detached")
			return false
		}
		t.errors.Add(1)
		t.logger.Error("binding write failed", "binding", b.id, "seq", seq, "error", err)
		return false
	}
	t.writes.Add(1)
	return true
}

func (t *Table) drop(b *binding, seq uint64, reason string) {
	t.dropped.Add(1)
	t.logger.Debug("binding write dropped", "binding", b.id, "seq", seq, "reason", reason)
}

func (t *Table) resolveErr(b *binding, err error) error {
	if err == nil {
		return nil
	}
	t.errors.Add(1)
	t.logger.Warn("style resolution failed", "binding", b.id, "recipe", b.target.Recipe.ID(), "error", err)
	return &ResolveError{Binding: b.id, Err: err}
}
