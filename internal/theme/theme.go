package theme

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Scheme is the light/dark polarity of a theme.
type Scheme string

const (
	SchemeLight Scheme = "light"
	SchemeDark  Scheme = "dark"
)

// Flip returns the opposite polarity.
func (s Scheme) Flip() Scheme {
	if s == SchemeLight {
		return SchemeDark
	}
	return SchemeLight
}

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool { return s == SchemeLight || s == SchemeDark }

// ParseScheme parses a scheme name case-insensitively.
func ParseScheme(raw string) (Scheme, error) {
	s := Scheme(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, raw)
	}
	return s, nil
}

// Built-in theme names.
const (
	NameWest    = "west"
	NameFitra   = "fitra"
	NameRoot    = "root"
	NameRead    = "read"
	NameArchive = "archive"
	NameLight   = "light"
	NameDark    = "dark"
)

// SemanticRoles defines stable semantic color slots used across the UI.
//
// Recipes should generally depend on these semantic roles rather than
// theme-specific color literals.
type SemanticRoles struct {
	Primary string `yaml:"primary" json:"primary"`
	Accent  string `yaml:"accent" json:"accent"`
	Muted   string `yaml:"muted" json:"muted"`
	Danger  string `yaml:"danger" json:"danger"`
	Success string `yaml:"success" json:"success"`
	Border  string `yaml:"border" json:"border"`
}

// Surface describes the base colors for one UI surface.
type Surface struct {
	Foreground string `yaml:"foreground" json:"foreground"`
	Background string `yaml:"background" json:"background"`
	Bold       bool   `yaml:"bold" json:"bold"`
}

// Surfaces provides the base surfaces every theme defines.
type Surfaces struct {
	Header   Surface `yaml:"header" json:"header"`
	Viewport Surface `yaml:"viewport" json:"viewport"`
	Prompt   Surface `yaml:"prompt" json:"prompt"`
	Warning  Surface `yaml:"warning" json:"warning"`
	Card     Surface `yaml:"card" json:"card"`
}

// Theme is an immutable, named set of colors.
type Theme struct {
	Name     string
	Scheme   Scheme
	Surfaces Surfaces
	Roles    SemanticRoles
}

var (
	// ErrUnknownTheme is returned when a requested theme name is not registered.
	ErrUnknownTheme = errors.New("unknown theme")
	// ErrUnknownScheme is returned for color schemes other than light or dark.
	ErrUnknownScheme = errors.New("unknown color scheme")
	// ErrInvalidTheme is returned when a theme definition fails validation.
	ErrInvalidTheme = errors.New("invalid theme")
)

var (
	hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)
	nameRegex     = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

// IsValidHexColor checks if a string is a valid hex color code (#RRGGBB or #RRGGBBAA).
func IsValidHexColor(hex string) bool {
	return hexColorRegex.MatchString(hex)
}

// Validate checks name, scheme and every color slot.
func (t Theme) Validate() error {
	if !nameRegex.MatchString(t.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidTheme, t.Name)
	}
	if !t.Scheme.Valid() {
		return fmt.Errorf("%w: %s: scheme %q", ErrInvalidTheme, t.Name, t.Scheme)
	}
	for slot, color := range t.colors() {
		if color == "" {
			continue
		}
		if !IsValidHexColor(color) {
			return fmt.Errorf("%w: %s: %s=%q is not a hex color", ErrInvalidTheme, t.Name, slot, color)
		}
	}
	return nil
}

func (t Theme) colors() map[string]string {
	s := t.Surfaces
	r := t.Roles
	return map[string]string{
		"header.foreground":   s.Header.Foreground,
		"header.background":   s.Header.Background,
		"viewport.foreground": s.Viewport.Foreground,
		"viewport.background": s.Viewport.Background,
		"prompt.foreground":   s.Prompt.Foreground,
		"prompt.background":   s.Prompt.Background,
		"warning.foreground":  s.Warning.Foreground,
		"warning.background":  s.Warning.Background,
		"card.foreground":     s.Card.Foreground,
		"card.background":     s.Card.Background,
		"roles.primary":       r.Primary,
		"roles.accent":        r.Accent,
		"roles.muted":         r.Muted,
		"roles.danger":        r.Danger,
		"roles.success":       r.Success,
		"roles.border":        r.Border,
	}
}

// Catalog is the set of themes available to an engine, plus the adaptive
// light/dark pair. It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	themes    map[string]Theme
	adaptive  map[Scheme]string
	listeners map[int]func(Theme)
	nextID    int
}

// NewCatalog returns a catalog preloaded with the built-in themes.
func NewCatalog() *Catalog {
	c := &Catalog{
		themes:    make(map[string]Theme, len(builtins)),
		adaptive:  map[Scheme]string{SchemeLight: NameLight, SchemeDark: NameDark},
		listeners: make(map[int]func(Theme)),
	}
	for _, t := range builtins {
		c.themes[t.Name] = t
	}
	return c
}

// Register adds or replaces a theme. Listeners registered with OnChange are
// notified after the catalog is updated.
func (c *Catalog) Register(t Theme) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.themes[t.Name] = t
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return nil
}

// Lookup returns the theme registered under name.
func (c *Catalog) Lookup(name string) (Theme, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.themes[name]
	if !ok {
		return Theme{}, fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	return t, nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.themes[name]
	return ok
}

// Adaptive returns the theme the adaptive pair maps scheme to.
func (c *Catalog) Adaptive(scheme Scheme) (Theme, error) {
	if !scheme.Valid() {
		return Theme{}, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	c.mu.RLock()
	name := c.adaptive[scheme]
	c.mu.RUnlock()
	return c.Lookup(name)
}

// SetAdaptive changes which registered themes form the adaptive pair.
// OnChange listeners are notified once for each theme of the new pair.
func (c *Catalog) SetAdaptive(light, dark string) error {
	c.mu.Lock()
	pair := make([]Theme, 0, 2)
	for _, name := range []string{light, dark} {
		t, ok := c.themes[name]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownTheme, name)
		}
		pair = append(pair, t)
	}
	c.adaptive[SchemeLight] = light
	c.adaptive[SchemeDark] = dark
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, t := range pair {
		for _, fn := range listeners {
			fn(t)
		}
	}
	return nil
}

// Names returns the names of all registered themes in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.themes))
	for name := range c.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshotListeners copies the listeners in registration order. c.mu must be
// held.
func (c *Catalog) snapshotListeners() []func(Theme) {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Theme), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}

// OnChange registers fn to be called whenever a theme is registered or
// replaced, and returns a function that removes the listener.
func (c *Catalog) OnChange(fn func(Theme)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}
