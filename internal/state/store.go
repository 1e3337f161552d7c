package state

import (
	"sort"
	"sync"

	"mosaic-style/internal/theme"
)

// Listener receives the published snapshot and the facts that changed.
type Listener func(next Snapshot, changed Fact)

type subscription struct {
	mask Fact
	fn   Listener
}

// Store holds the current snapshot. Writers are serialized: every publish
// is applied to the snapshot it was computed from (see Update), so concurrent
// writers such as the host and a theme reloader never roll each other back.
// Listeners run synchronously, in publication order, and must not publish
// from inside the callback.
type Store struct {
	pubMu sync.Mutex

	mu          sync.RWMutex
	current     Snapshot
	subs        map[int]subscription
	nextID      int
	breakpoints []Breakpoint
}

// Option configures a Store.
type Option func(*Store)

// WithBreakpoints replaces the breakpoint table used to derive
// Snapshot.Breakpoint from the screen width.
func WithBreakpoints(table []Breakpoint) Option {
	return func(s *Store) {
		s.breakpoints = sortedBreakpoints(table)
	}
}

// NewStore creates a store seeded with initial. The breakpoint is derived
// from the initial screen width and the version starts at 1.
func NewStore(initial Snapshot, opts ...Option) *Store {
	s := &Store{
		subs:        make(map[int]subscription),
		breakpoints: sortedBreakpoints(DefaultBreakpoints),
	}
	for _, opt := range opts {
		opt(s)
	}
	if initial.ColorScheme == "" {
		initial.ColorScheme = theme.SchemeDark
	}
	if initial.FontScale == 0 {
		initial.FontScale = 1
	}
	initial.Breakpoint = breakpointFor(s.breakpoints, initial.Screen.Width)
	initial.Version = 1
	s.current = initial
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Publish replaces the current snapshot and notifies every subscription whose
// mask intersects the changed facts. It returns the changed facts; publishing
// an identical snapshot changes nothing and notifies no one.
func (s *Store) Publish(next Snapshot) Fact {
	changed, _ := s.publish(next, 0)
	return changed
}

// Update publishes fn applied to the current snapshot. The read and the
// publish are atomic: if another writer publishes between them, fn runs
// again on the newer snapshot, so fn must not depend on how often it runs.
// fn runs without any store lock held and may publish itself.
func (s *Store) Update(fn func(Snapshot) Snapshot) Fact {
	for {
		base := s.Snapshot()
		if changed, ok := s.publish(fn(base), base.Version); ok {
			return changed
		}
	}
}

// publish commits next unless expect is non-zero and the current version
// moved past it. Listeners run under pubMu so that they observe snapshots in
// publication order.
func (s *Store) publish(next Snapshot, expect uint64) (Fact, bool) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	prev := s.current
	if expect != 0 && prev.Version != expect {
		s.mu.Unlock()
		return FactNone, false
	}
	next.Breakpoint = breakpointFor(s.breakpoints, next.Screen.Width)
	next.Version = prev.Version
	changed := Diff(prev, next)
	if changed == FactNone {
		s.mu.Unlock()
		return FactNone, true
	}
	next.Version = prev.Version + 1
	s.current = next

	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	targets := make([]Listener, 0, len(ids))
	for _, id := range ids {
		sub := s.subs[id]
		if sub.mask.Intersects(changed) {
			targets = append(targets, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(next, changed)
	}
	return changed, true
}

// Subscribe registers fn for changes to any fact in mask. A zero mask is
// accepted and never fires. The returned function removes the subscription.
func (s *Store) Subscribe(mask Fact, fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{mask: mask, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Track runs read against the current snapshot and reports which facts it
// accessed. Facts are recorded by calling View getters, so a selector that
// receives the view but reads nothing tracks FactNone and a subscription
// built from it is never notified.
func (s *Store) Track(read func(v *View)) Fact {
	v := &View{snap: s.Snapshot()}
	read(v)
	return v.read
}

// SubscribeFunc combines Track and Subscribe.
func (s *Store) SubscribeFunc(read func(v *View), fn Listener) func() {
	return s.Subscribe(s.Track(read), fn)
}

// View is a read-recording accessor over a snapshot.
type View struct {
	snap Snapshot
	read Fact
}

func (v *View) Theme() theme.Theme {
	v.read |= FactTheme
	return v.snap.Theme
}

func (v *View) ThemeName() string {
	v.read |= FactTheme
	return v.snap.ThemeName
}

func (v *View) ColorScheme() theme.Scheme {
	v.read |= FactColorScheme
	return v.snap.ColorScheme
}

func (v *View) Screen() Screen {
	v.read |= FactScreen
	return v.snap.Screen
}

func (v *View) Insets() Insets {
	v.read |= FactInsets
	return v.snap.Insets
}

func (v *View) FontScale() float64 {
	v.read |= FactFontScale
	return v.snap.FontScale
}

func (v *View) Breakpoint() string {
	v.read |= FactBreakpoint
	return v.snap.Breakpoint
}

// Read returns the facts accessed so far.
func (v *View) Read() Fact { return v.read }
