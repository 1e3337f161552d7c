package scope

import (
	"errors"
	"testing"

	"mosaic-style/internal/state"
	"mosaic-style/internal/theme"
)

func ambient(t *testing.T, catalog *theme.Catalog, name string, scheme theme.Scheme) state.Snapshot {
	t.Helper()
	th, err := catalog.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%s) error: %v", name, err)
	}
	return state.Snapshot{}.WithTheme(th).WithColorScheme(scheme)
}

func effective(t *testing.T, s *Stack, snap state.Snapshot) string {
	t.Helper()
	th, err := s.EffectiveTheme(snap)
	if err != nil {
		t.Fatalf("EffectiveTheme() error: %v", err)
	}
	return th.Name
}

func TestNestedFramesAndReset(t *testing.T) {
	t.Parallel()

	catalog := theme.NewCatalog()
	snap := ambient(t, catalog, theme.NameWest, theme.SchemeDark)
	s := NewStack(catalog)

	steps := []struct {
		op   func()
		want string
	}{
		{op: func() { mustPush(t, s, Named(theme.NameDark)) }, want: theme.NameDark},
		{op: func() { mustPush(t, s, Named(theme.NameLight)) }, want: theme.NameLight},
		{op: func() { mustPush(t, s, ResetFrame()) }, want: theme.NameWest},
		{op: s.Pop, want: theme.NameLight},
		{op: s.Pop, want: theme.NameDark},
		{op: s.Pop, want: theme.NameWest},
	}
	for i, step := range steps {
		step.op()
		if got := effective(t, s, snap); got != step.want {
			t.Fatalf("step %d: effective theme = %q, want %q", i, got, step.want)
		}
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", s.Depth())
	}
}

func mustPush(t *testing.T, s *Stack, f Frame) {
	t.Helper()
	if err := s.Push(f); err != nil {
		t.Fatalf("Push(%+v) error: %v", f, err)
	}
}

func TestInvertedAdaptiveFollowsAmbientScheme(t *testing.T) {
	t.Parallel()

	catalog := theme.NewCatalog()
	s := NewStack(catalog)
	mustPush(t, s, Inverted())
	defer s.Pop()

	dark := ambient(t, catalog, theme.NameDark, theme.SchemeDark)
	if got := effective(t, s, dark); got != theme.NameLight {
		t.Fatalf("inverted under dark = %q, want light", got)
	}

	light := dark.WithColorScheme(theme.SchemeLight)
	if got := effective(t, s, light); got != theme.NameDark {
		t.Fatalf("inverted under light = %q, want dark", got)
	}
	if !s.Capture().Inverted() {
		t.Fatal("captured chain should report inverted resolution")
	}
}

func TestBalancedSequencesReturnToAmbient(t *testing.T) {
	t.Parallel()

	catalog := theme.NewCatalog()
	snap := ambient(t, catalog, theme.NameRoot, theme.SchemeDark)
	sequences := [][]Frame{
		{Named(theme.NameFitra)},
		{Inverted(), Named(theme.NameLight), ResetFrame()},
		{ResetFrame(), ResetFrame(), Named(theme.NameDark), Inverted()},
	}

	for i, seq := range sequences {
		s := NewStack(catalog)
		for _, f := range seq {
			mustPush(t, s, f)
		}
		for range seq {
			s.Pop()
		}
		if got := effective(t, s, snap); got != theme.NameRoot {
			t.Fatalf("sequence %d: effective = %q, want ambient", i, got)
		}
	}
}

func TestWithinDoesNotLeakToSiblings(t *testing.T) {
	t.Parallel()

	catalog := theme.NewCatalog()
	snap := ambient(t, catalog, theme.NameWest, theme.SchemeDark)
	s := NewStack(catalog)

	var inside string
	if err := s.Within(Named(theme.NameFitra), func() { inside = effective(t, s, snap) }); err != nil {
		t.Fatalf("Within() error: %v", err)
	}
	if inside != theme.NameFitra {
		t.Fatalf("inside = %q, want fitra", inside)
	}
	if got := effective(t, s, snap); got != theme.NameWest {
		t.Fatalf("sibling sees %q, want ambient", got)
	}
}

func TestWithinPopsOnPanic(t *testing.T) {
	t.Parallel()

	s := NewStack(theme.NewCatalog())
	func() {
		defer func() { _ = recover() }()
		_ = s.Within(Named(theme.NameDark), func() { panic("render failed") })
	}()
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d after panic, want 0", s.Depth())
	}
}

func TestConfigurationErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewFrame(theme.NameDark, true, false); !errors.Is(err, ErrConflictingOverride) {
		t.Fatalf("NewFrame(named+inverted) = %v, want ErrConflictingOverride", err)
	}

	catalog := theme.NewCatalog()
	s := NewStack(catalog)
	err := s.Push(Named("mystery"))
	if !errors.Is(err, theme.ErrUnknownTheme) {
		t.Fatalf("Push(unknown) = %v, want ErrUnknownTheme", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("unknown frame should still be pushed, depth = %d", s.Depth())
	}
	if _, err := s.EffectiveTheme(ambient(t, catalog, theme.NameWest, theme.SchemeDark)); !errors.Is(err, theme.ErrUnknownTheme) {
		t.Fatalf("EffectiveTheme() under unknown frame = %v", err)
	}
	s.Pop()
}

func TestPopOnEmptyStackPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewStack(theme.NewCatalog()).Pop()
}

func TestCaptureStartsAtNearestReset(t *testing.T) {
	t.Parallel()

	s := NewStack(theme.NewCatalog())
	mustPush(t, s, Named(theme.NameDark))
	mustPush(t, s, ResetFrame())
	mustPush(t, s, Named(theme.NameLight))

	chain := s.Capture()
	if chain.Len() != 2 {
		t.Fatalf("Capture().Len() = %d, want 2", chain.Len())
	}
	if !chain.Equal(s.Capture()) {
		t.Fatal("identical captures should be equal")
	}
}
