package tui

import (
	"mosaic-style/internal/native"
	"mosaic-style/internal/registry"
	"mosaic-style/internal/state"
	"mosaic-style/internal/style"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/variant"
)

const (
	sheetChrome = "chrome"
	sheetCards  = "cards"

	// chromeRows is the number of rows the header and prompt occupy.
	chromeRows = 5
	gaugeWidth = 30
)

var tones = []string{"default", "accent", "danger", "success"}

func chromeRecipe(th theme.Theme, rt state.Snapshot) registry.Sheet {
	s := th.Surfaces
	gutter := 1
	if rt.Breakpoint == "md" || rt.Breakpoint == "lg" {
		gutter = 2
	}
	return registry.Sheet{
		"header": registry.Static(style.Style{
			"color":           s.Header.Foreground,
			"backgroundColor": s.Header.Background,
			"bold":            s.Header.Bold,
			"paddingLeft":     gutter,
			"width":           rt.Screen.Width,
		}),
		"viewport": registry.Static(style.Style{
			"color":           s.Viewport.Foreground,
			"backgroundColor": s.Viewport.Background,
			"paddingLeft":     gutter,
			"width":           rt.Screen.Width,
			"height":          max(rt.Screen.Height-chromeRows, 1),
		}),
		"prompt": registry.Static(style.Style{
			"color":           s.Prompt.Foreground,
			"backgroundColor": s.Prompt.Background,
			"bold":            s.Prompt.Bold,
			"paddingLeft":     gutter,
			"width":           rt.Screen.Width,
		}),
		"warning": registry.Static(style.Style{
			"color":           s.Warning.Foreground,
			"backgroundColor": s.Warning.Background,
			"bold":            s.Warning.Bold,
		}),
		"label": registry.Static(style.Style{"bold": true, "underline": true}),
	}
}

var chromeDeps = registry.Deps{
	"header":   state.FactTheme | state.FactScreen | state.FactBreakpoint,
	"viewport": state.FactTheme | state.FactScreen | state.FactBreakpoint,
	"prompt":   state.FactTheme | state.FactScreen | state.FactBreakpoint,
	"warning":  state.FactTheme,
}

func cardsRecipe(th theme.Theme, _ state.Snapshot) registry.Sheet {
	card := th.Surfaces.Card
	r := th.Roles
	return registry.Sheet{
		"card": registry.WithVariants(style.Style{
			"color":           card.Foreground,
			"backgroundColor": card.Background,
			"borderStyle":     "rounded",
			"borderColor":     r.Border,
			"padding":         1,
			"width":           gaugeWidth + 4,
		}, variant.Block{
			Groups: map[string]variant.Group{
				"tone": {
					"default": {},
					"accent":  {"borderColor": r.Accent},
					"danger":  {"borderColor": r.Danger},
					"success": {"borderColor": r.Success},
				},
				"emphasis": {
					"true":  {"bold": true, "borderStyle": "thick"},
					"false": {"faint": true},
				},
			},
			Compound: []variant.Compound{
				{When: map[string]any{"tone": "danger", "emphasis": true}, Style: style.Style{"underline": true}},
			},
		}),
		"gauge": registry.Dynamic(func(args ...any) style.Style {
			pct, _ := native.ToInt(args[0])
			pct = min(max(pct, 0), 100)
			color := r.Success
			if pct >= 80 {
				color = r.Danger
			}
			return style.Style{
				"backgroundColor": color,
				"width":           max(pct*gaugeWidth/100, 1),
			}
		}),
	}
}

var cardsDeps = registry.Deps{
	"card":  state.FactTheme,
	"gauge": state.FactTheme,
}
