// Package state is the runtime state store: an immutable, versioned snapshot
// of ambient environment facts with per-fact subscriptions.
package state

import (
	"fmt"
	"sort"
	"strings"

	"mosaic-style/internal/theme"
)

// Fact is a bitset of top-level snapshot facts. It doubles as the tag domain
// of a style key's dependency set.
type Fact uint16

const (
	FactTheme Fact = 1 << iota
	FactColorScheme
	FactScreen
	FactInsets
	FactFontScale
	FactBreakpoint

	// FactNone is the empty dependency set.
	FactNone Fact = 0
	// FactAll matches every fact.
	FactAll = FactTheme | FactColorScheme | FactScreen | FactInsets | FactFontScale | FactBreakpoint
)

var factNames = []struct {
	fact Fact
	name string
}{
	{FactTheme, "theme"},
	{FactColorScheme, "colorScheme"},
	{FactScreen, "screen"},
	{FactInsets, "insets"},
	{FactFontScale, "fontScale"},
	{FactBreakpoint, "breakpoint"},
}

// Has reports whether every fact in other is set in f.
func (f Fact) Has(other Fact) bool { return f&other == other }

// Intersects reports whether f and other share a fact.
func (f Fact) Intersects(other Fact) bool { return f&other != 0 }

func (f Fact) String() string {
	if f == FactNone {
		return "none"
	}
	var parts []string
	for _, fn := range factNames {
		if f&fn.fact != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFacts converts dependency tags, as produced by static analysis, into
// a Fact set. Tag matching is case-insensitive; "none" is accepted and adds
// nothing.
func ParseFacts(tags ...string) (Fact, error) {
	var out Fact
	for _, tag := range tags {
		norm := strings.ToLower(strings.TrimSpace(tag))
		if norm == "none" || norm == "" {
			continue
		}
		found := false
		for _, fn := range factNames {
			if strings.ToLower(fn.name) == norm {
				out |= fn.fact
				found = true
				break
			}
		}
		if !found {
			return FactNone, fmt.Errorf("unknown dependency tag %q", tag)
		}
	}
	return out, nil
}

// Screen is the window geometry in cells.
type Screen struct {
	Width  int
	Height int
}

// Insets are the unusable margins around the screen.
type Insets struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Snapshot is the immutable bundle of environment facts at one point in
// time. Stores replace it wholesale; the With helpers return modified copies.
type Snapshot struct {
	Version     uint64
	ThemeName   string
	Theme       theme.Theme
	ColorScheme theme.Scheme
	Screen      Screen
	Insets      Insets
	FontScale   float64
	Breakpoint  string
}

func (s Snapshot) WithTheme(t theme.Theme) Snapshot {
	s.ThemeName = t.Name
	s.Theme = t
	return s
}

func (s Snapshot) WithColorScheme(scheme theme.Scheme) Snapshot {
	s.ColorScheme = scheme
	return s
}

func (s Snapshot) WithScreen(width, height int) Snapshot {
	s.Screen = Screen{Width: width, Height: height}
	return s
}

func (s Snapshot) WithInsets(in Insets) Snapshot {
	s.Insets = in
	return s
}

func (s Snapshot) WithFontScale(scale float64) Snapshot {
	s.FontScale = scale
	return s
}

// Diff returns the facts whose values differ between prev and next.
// Version is bookkeeping and never counts as a change.
func Diff(prev, next Snapshot) Fact {
	var changed Fact
	if prev.ThemeName != next.ThemeName || prev.Theme != next.Theme {
		changed |= FactTheme
	}
	if prev.ColorScheme != next.ColorScheme {
		changed |= FactColorScheme
	}
	if prev.Screen != next.Screen {
		changed |= FactScreen
	}
	if prev.Insets != next.Insets {
		changed |= FactInsets
	}
	if prev.FontScale != next.FontScale {
		changed |= FactFontScale
	}
	if prev.Breakpoint != next.Breakpoint {
		changed |= FactBreakpoint
	}
	return changed
}

// Breakpoint names the layout class that applies from MinWidth columns up.
type Breakpoint struct {
	Name     string
	MinWidth int
}

// DefaultBreakpoints is tuned for terminal column counts.
var DefaultBreakpoints = []Breakpoint{
	{Name: "xs", MinWidth: 0},
	{Name: "sm", MinWidth: 60},
	{Name: "md", MinWidth: 100},
	{Name: "lg", MinWidth: 140},
}

func sortedBreakpoints(in []Breakpoint) []Breakpoint {
	out := make([]Breakpoint, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinWidth < out[j].MinWidth })
	return out
}

func breakpointFor(table []Breakpoint, width int) string {
	name := ""
	for _, bp := range table {
		if width >= bp.MinWidth {
			name = bp.Name
		}
	}
	return name
}
