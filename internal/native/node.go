// Package native is the terminal host layer: nodes that turn style payloads
// into lipgloss styles and render content with them.
package native

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/lipgloss"

	"mosaic-style/internal/binding"
	"mosaic-style/internal/style"
)

// ErrUnsupportedValue is returned when a payload property has a value the
// terminal cannot express.
var ErrUnsupportedValue = errors.New("unsupported style value")

// Node is a terminal surface styled by payload writes. It is safe for
// concurrent use: the engine writes while the UI goroutine renders.
type Node struct {
	name     string
	renderer *lipgloss.Renderer

	mu          sync.RWMutex
	style       lipgloss.Style
	payload     style.Style
	fingerprint uint64
	encoded     bool
	encodes     int
	detached    bool
}

// NewNode returns a node rendering through r; a nil renderer uses the
// default lipgloss renderer.
func NewNode(name string, r *lipgloss.Renderer) *Node {
	n := &Node{name: name, renderer: r}
	n.style = n.newStyle()
	return n
}

func (n *Node) newStyle() lipgloss.Style {
	if n.renderer != nil {
		return n.renderer.NewStyle()
	}
	return lipgloss.NewStyle()
}

// Name returns the node's debug name.
func (n *Node) Name() string { return n.name }

// WriteStyle replaces the node's style with one encoded from payload. A
// payload identical to the last one is not re-encoded. Properties with
// unsupported values are skipped and reported.
func (n *Node) WriteStyle(payload style.Style) error {
	sum := fingerprint(payload)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.detached {
		return fmt.Errorf("%w: %s", binding.ErrDetached, n.name)
	}
	if n.encoded && sum == n.fingerprint {
		return nil
	}

	s, err := encode(n.newStyle(), payload)
	n.style = s
	n.payload = payload.Clone()
	n.fingerprint = sum
	n.encoded = true
	n.encodes++
	if err != nil {
		return fmt.Errorf("native %s: %w", n.name, err)
	}
	return nil
}

// Detach tears the node down; later writes fail with binding.ErrDetached.
func (n *Node) Detach() {
	n.mu.Lock()
	n.detached = true
	n.mu.Unlock()
}

// Style returns the current lipgloss style.
func (n *Node) Style() lipgloss.Style {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.style
}

// Payload returns a copy of the last payload written.
func (n *Node) Payload() style.Style {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.payload.Clone()
}

// Encodes reports how many payloads were actually encoded.
func (n *Node) Encodes() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.encodes
}

// Render renders strs with the node's current style.
func (n *Node) Render(strs ...string) string {
	return n.Style().Render(strs...)
}

func fingerprint(payload style.Style) uint64 {
	h := xxhash.New()
	for _, k := range payload.Keys() {
		h.WriteString(k)
		h.WriteString("=")
		h.WriteString(fmt.Sprintf("%#v", payload[k]))
		h.WriteString(";")
	}
	return h.Sum64()
}

var borders = map[string]lipgloss.Border{
	"normal":  lipgloss.NormalBorder(),
	"rounded": lipgloss.RoundedBorder(),
	"thick":   lipgloss.ThickBorder(),
	"double":  lipgloss.DoubleBorder(),
	"hidden":  lipgloss.HiddenBorder(),
	"block":   lipgloss.BlockBorder(),
}

var alignments = map[string]lipgloss.Position{
	"left":   lipgloss.Left,
	"center": lipgloss.Center,
	"right":  lipgloss.Right,
}

type encoder func(s lipgloss.Style, v any) (lipgloss.Style, error)

var properties = map[string]encoder{
	"color":           colorProp(lipgloss.Style.Foreground),
	"backgroundColor": colorProp(lipgloss.Style.Background),
	"bold":            boolProp(lipgloss.Style.Bold),
	"italic":          boolProp(lipgloss.Style.Italic),
	"underline":       boolProp(lipgloss.Style.Underline),
	"strikethrough":   boolProp(lipgloss.Style.Strikethrough),
	"faint":           boolProp(lipgloss.Style.Faint),
	"reverse":         boolProp(lipgloss.Style.Reverse),
	"paddingTop":      intProp(lipgloss.Style.PaddingTop),
	"paddingRight":    intProp(lipgloss.Style.PaddingRight),
	"paddingBottom":   intProp(lipgloss.Style.PaddingBottom),
	"paddingLeft":     intProp(lipgloss.Style.PaddingLeft),
	"marginTop":       intProp(lipgloss.Style.MarginTop),
	"marginRight":     intProp(lipgloss.Style.MarginRight),
	"marginBottom":    intProp(lipgloss.Style.MarginBottom),
	"marginLeft":      intProp(lipgloss.Style.MarginLeft),
	"width":           intProp(lipgloss.Style.Width),
	"height":          intProp(lipgloss.Style.Height),
	"maxWidth":        intProp(lipgloss.Style.MaxWidth),
	"borderColor": colorProp(func(s lipgloss.Style, c lipgloss.TerminalColor) lipgloss.Style {
		return s.BorderForeground(c)
	}),
	"padding": func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		i, err := ToInt(v)
		if err != nil {
			return s, err
		}
		return s.Padding(i), nil
	},
	"margin": func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		i, err := ToInt(v)
		if err != nil {
			return s, err
		}
		return s.Margin(i), nil
	},
	"borderStyle": func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		name, ok := v.(string)
		b, known := borders[name]
		if !ok || !known {
			return s, fmt.Errorf("%w: border %v", ErrUnsupportedValue, v)
		}
		return s.Border(b), nil
	},
	"align": func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		name, ok := v.(string)
		pos, known := alignments[name]
		if !ok || !known {
			return s, fmt.Errorf("%w: align %v", ErrUnsupportedValue, v)
		}
		return s.Align(pos), nil
	},
}

// encode applies payload to s. Shorthand properties (padding, margin) are
// applied before the per-side ones so the latter win. Unknown properties
// are ignored; other hosts may understand them.
func encode(s lipgloss.Style, payload style.Style) (lipgloss.Style, error) {
	keys := payload.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return shorthand(keys[i]) && !shorthand(keys[j])
	})

	var errs []error
	for _, k := range keys {
		enc, ok := properties[k]
		if !ok {
			continue
		}
		next, err := enc(s, payload[k])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		s = next
	}
	return s, errors.Join(errs...)
}

func shorthand(key string) bool { return key == "padding" || key == "margin" }

func colorProp(set func(lipgloss.Style, lipgloss.TerminalColor) lipgloss.Style) encoder {
	return func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		c, ok := v.(string)
		if !ok || c == "" {
			return s, fmt.Errorf("%w: color %v", ErrUnsupportedValue, v)
		}
		return set(s, lipgloss.Color(c)), nil
	}
}

func boolProp(set func(lipgloss.Style, bool) lipgloss.Style) encoder {
	return func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		b, ok := v.(bool)
		if !ok {
			return s, fmt.Errorf("%w: expected bool, got %T", ErrUnsupportedValue, v)
		}
		return set(s, b), nil
	}
}

func intProp(set func(lipgloss.Style, int) lipgloss.Style) encoder {
	return func(s lipgloss.Style, v any) (lipgloss.Style, error) {
		i, err := ToInt(v)
		if err != nil {
			return s, err
		}
		return set(s, i), nil
	}
}

// ToInt converts any Go numeric kind to int, rounding floats.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float32:
		return int(math.Round(float64(n))), nil
	case float64:
		return int(math.Round(n)), nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrUnsupportedValue, v)
	}
}
