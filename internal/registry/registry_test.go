package registry

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mosaic-style/internal/state"
	"mosaic-style/internal/style"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

func testTheme(t *testing.T) theme.Theme {
	t.Helper()
	th, err := theme.NewCatalog().Lookup(theme.NameWest)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	return th
}

func cardRecipe(th theme.Theme, rt state.Snapshot) Sheet {
	return Sheet{
		"title": Static(style.Style{"color": th.Surfaces.Header.Foreground, "bold": true}),
		"body":  Static(style.Style{"paddingLeft": rt.Insets.Left}),
		"gauge": Dynamic(func(args ...any) style.Style {
			return style.Style{"width": args[0]}
		}),
		"button": WithVariants(style.Style{"bold": true}, variant.Block{Groups: map[string]variant.Group{
			"size": {"small": style.Style{"paddingLeft": 1}},
		}}),
	}
}

func TestEvaluateIsPureInItsInputs(t *testing.T) {
	t.Parallel()

	r := New()
	h, err := r.Register("card", cardRecipe, Deps{"title": state.FactTheme, "body": state.FactInsets})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	th := testTheme(t)
	snap := state.Snapshot{}.WithInsets(state.Insets{Left: 3})
	first, err := r.Evaluate(h, th, snap)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	second, _ := r.Evaluate(h, th, snap)

	for _, key := range first.Keys() {
		if key == "gauge" {
			continue
		}
		a, _ := first.Resolve(key)
		b, _ := second.Resolve(key)
		if diff := cmp.Diff(a.Style, b.Style); diff != "" {
			t.Fatalf("key %s differs between evaluations:\n%s", key, diff)
		}
	}

	body, _ := first.Resolve("body")
	if body.Style["paddingLeft"] != 3 {
		t.Fatalf("body = %v, want paddingLeft 3", body.Style)
	}
	if first.ThemeName() != theme.NameWest || first.RecipeID() != "card" {
		t.Fatalf("evaluation metadata = %s/%s", first.RecipeID(), first.ThemeName())
	}
}

func TestDynamicResultsCachedPerArgumentTuple(t *testing.T) {
	t.Parallel()

	calls := 0
	recipe := func(theme.Theme, state.Snapshot) Sheet {
		return Sheet{"gauge": Dynamic(func(args ...any) style.Style {
			calls++
			return style.Style{"width": args[0], "opts": args[1]}
		})}
	}
	r := New()
	h, _ := r.Register("gauge", recipe, nil)

	ev, err := r.Evaluate(h, testTheme(t), state.Snapshot{})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	opts := map[string]any{"fill": "#"}
	for i := 0; i < 3; i++ {
		if _, err := ev.Resolve("gauge", 10, opts); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
	}
	if _, err := ev.Resolve("gauge", 20, opts); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if calls != 2 || ev.DynamicCalls() != 2 {
		t.Fatalf("dynamic calls = %d (%d tracked), want 2", calls, ev.DynamicCalls())
	}

	next, _ := r.Evaluate(h, testTheme(t), state.Snapshot{})
	if _, err := next.Resolve("gauge", 10, opts); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("a new pass must recompute, calls = %d", calls)
	}
}

func TestDynamicCacheSeparatesCollidingTuples(t *testing.T) {
	t.Parallel()

	calls := 0
	recipe := func(theme.Theme, state.Snapshot) Sheet {
		return Sheet{"d": Dynamic(func(args ...any) style.Style {
			calls++
			return style.Style{"call": calls, "n": len(args)}
		})}
	}
	r := New()
	h, _ := r.Register("d", recipe, nil)
	ev, err := r.Evaluate(h, testTheme(t), state.Snapshot{})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	tuples := [][]any{
		{},
		{""},
		{nil},
		{0},
		{false},
		{uint8(0)},
		{map[string]any{}},
		{0.0},
	}
	seen := make(map[any][]any)
	for _, args := range tuples {
		got, err := ev.Resolve("d", args...)
		if err != nil {
			t.Fatalf("Resolve(%#v) error: %v", args, err)
		}
		if prev, ok := seen[got.Style["call"]]; ok {
			t.Fatalf("Resolve(%#v) reused the result of Resolve(%#v)", args, prev)
		}
		seen[got.Style["call"]] = args
	}
	if calls != len(tuples) || ev.DynamicCalls() != len(tuples) {
		t.Fatalf("dynamic calls = %d (%d tracked), want %d", calls, ev.DynamicCalls(), len(tuples))
	}

	again, _ := ev.Resolve("d", uint8(0))
	if diff := cmp.Diff(style.Style{"call": 6, "n": 1}, again.Style); diff != "" {
		t.Fatalf("repeat tuple mismatch (-want +got):\n%s", diff)
	}
	if calls != len(tuples) {
		t.Fatalf("repeat tuple recomputed, calls = %d", calls)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	r := New()
	h, _ := r.Register("card", cardRecipe, nil)
	ev, err := r.Evaluate(h, testTheme(t), state.Snapshot{})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	tests := []struct {
		name string
		key  string
		args []any
		want error
	}{
		{name: "unknown key", key: "nope", want: ErrUnknownKey},
		{name: "args on static", key: "title", args: []any{1}, want: ErrNotDynamic},
		{name: "func arg", key: "gauge", args: []any{func() {}}, want: ErrUnserializableArg},
		{name: "dynamic panics", key: "gauge", args: nil, want: ErrRecipeFailed},
	}
	for _, tt := range tests {
		if _, err := ev.Resolve(tt.key, tt.args...); !errors.Is(err, tt.want) {
			t.Fatalf("%s: Resolve() = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestRecipePanicIsRecovered(t *testing.T) {
	t.Parallel()

	r := New()
	h, _ := r.Register("boom", func(theme.Theme, state.Snapshot) Sheet { panic("bad recipe") }, nil)
	if _, err := r.Evaluate(h, testTheme(t), state.Snapshot{}); !errors.Is(err, ErrRecipeFailed) {
		t.Fatalf("Evaluate() = %v, want ErrRecipeFailed", err)
	}
	if _, err := r.Evaluate(Handle{id: "missing"}, testTheme(t), state.Snapshot{}); !errors.Is(err, ErrUnknownRecipe) {
		t.Fatalf("Evaluate(missing) = %v, want ErrUnknownRecipe", err)
	}
}

func TestReRegisterReplacesAndNotifiesOnce(t *testing.T) {
	t.Parallel()

	r := New()
	var replaced []string
	r.OnReplace(func(id string) { replaced = append(replaced, id) })

	h, _ := r.Register("card", cardRecipe, Deps{"title": state.FactTheme})
	if len(replaced) != 0 || r.Revision(h) != 1 {
		t.Fatalf("first register: replaced=%v revision=%d", replaced, r.Revision(h))
	}

	h2, _ := r.Register("card", func(theme.Theme, state.Snapshot) Sheet {
		return Sheet{"title": Static(style.Style{"color": "#123456"})}
	}, nil)
	if h2 != h {
		t.Fatal("hot swap should keep the handle")
	}
	if len(replaced) != 1 || replaced[0] != "card" || r.Revision(h) != 2 {
		t.Fatalf("after swap: replaced=%v revision=%d", replaced, r.Revision(h))
	}
	if r.Deps(h, "title") != state.FactNone {
		t.Fatalf("declarations should be replaced too, got %s", r.Deps(h, "title"))
	}

	ev, _ := r.Evaluate(h, testTheme(t), state.Snapshot{})
	title, _ := ev.Resolve("title")
	if title.Style["color"] != "#123456" {
		t.Fatalf("evaluation should use the new recipe, got %v", title.Style)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	r := New()
	if _, err := r.Register("", cardRecipe, nil); !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("Register(empty id) = %v", err)
	}
	if _, err := r.Register("x", nil, nil); !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("Register(nil recipe) = %v", err)
	}
}
