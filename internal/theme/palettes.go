package theme

var builtins = []Theme{
	{
		Name:   NameWest,
		Scheme: SchemeDark,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#FFFFFF", Background: "#0B1F3A", Bold: true},
			Viewport: Surface{Foreground: "#D7E3F4", Background: "#122A4A"},
			Prompt:   Surface{Foreground: "#FFFFFF", Background: "#0F345E", Bold: true},
			Warning:  Surface{Foreground: "#FFDDE0", Background: "#5B1F2A", Bold: true},
			Card:     Surface{Foreground: "#EAF1FB", Background: "#163A63"},
		},
		Roles: SemanticRoles{Primary: "#0B1F3A", Accent: "#0F345E", Muted: "#122A4A", Danger: "#5B1F2A", Success: "#1F6B4A", Border: "#2A4C74"},
	},
	{
		Name:   NameFitra,
		Scheme: SchemeDark,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#1A1A1A", Background: "#D4AF37", Bold: true},
			Viewport: Surface{Foreground: "#D2FFE8", Background: "#0B6B49"},
			Prompt:   Surface{Foreground: "#103926", Background: "#D8B94A", Bold: true},
			Warning:  Surface{Foreground: "#3A1800", Background: "#F4B183", Bold: true},
			Card:     Surface{Foreground: "#DFF9EC", Background: "#0E7A53"},
		},
		Roles: SemanticRoles{Primary: "#0B6B49", Accent: "#D4AF37", Muted: "#0E7A53", Danger: "#C65E36", Success: "#1E9E68", Border: "#65A989"},
	},
	{
		Name:   NameRoot,
		Scheme: SchemeDark,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#FFFFFF", Background: "#7A1421", Bold: true},
			Viewport: Surface{Foreground: "#FCECEE", Background: "#941C2A"},
			Prompt:   Surface{Foreground: "#FFFFFF", Background: "#A11E2D", Bold: true},
			Warning:  Surface{Foreground: "#2D050A", Background: "#F28A94", Bold: true},
			Card:     Surface{Foreground: "#FFECEE", Background: "#8A1A27"},
		},
		Roles: SemanticRoles{Primary: "#7A1421", Accent: "#A11E2D", Muted: "#8A1A27", Danger: "#C92035", Success: "#5B9B68", Border: "#B95765"},
	},
	grayscale(NameRead),
	grayscale(NameArchive),
	{
		Name:   NameLight,
		Scheme: SchemeLight,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#0B1F3A", Background: "#E8EEF6", Bold: true},
			Viewport: Surface{Foreground: "#1A1A1A", Background: "#FAFBFC"},
			Prompt:   Surface{Foreground: "#0B1F3A", Background: "#DCE6F2", Bold: true},
			Warning:  Surface{Foreground: "#5B1F2A", Background: "#FFDDE0", Bold: true},
			Card:     Surface{Foreground: "#122A4A", Background: "#EEF3F9"},
		},
		Roles: SemanticRoles{Primary: "#0F345E", Accent: "#2A6FB8", Muted: "#8A94A3", Danger: "#B3261E", Success: "#1F6B4A", Border: "#C5CFDC"},
	},
	{
		Name:   NameDark,
		Scheme: SchemeDark,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#F2F2F2", Background: "#161B22", Bold: true},
			Viewport: Surface{Foreground: "#D0D7DE", Background: "#0D1117"},
			Prompt:   Surface{Foreground: "#F2F2F2", Background: "#21262D", Bold: true},
			Warning:  Surface{Foreground: "#FFDDE0", Background: "#5B1F2A", Bold: true},
			Card:     Surface{Foreground: "#E6EDF3", Background: "#161B22"},
		},
		Roles: SemanticRoles{Primary: "#58A6FF", Accent: "#D2A8FF", Muted: "#6E7681", Danger: "#F85149", Success: "#3FB950", Border: "#30363D"},
	},
}

func grayscale(name string) Theme {
	return Theme{
		Name:   name,
		Scheme: SchemeDark,
		Surfaces: Surfaces{
			Header:   Surface{Foreground: "#FFFFFF", Background: "#111111", Bold: true},
			Viewport: Surface{Foreground: "#F2F2F2", Background: "#1A1A1A"},
			Prompt:   Surface{Foreground: "#FFFFFF", Background: "#000000", Bold: true},
			Warning:  Surface{Foreground: "#000000", Background: "#E6E6E6", Bold: true},
			Card:     Surface{Foreground: "#FFFFFF", Background: "#222222"},
		},
		Roles: SemanticRoles{Primary: "#111111", Accent: "#FFFFFF", Muted: "#1A1A1A", Danger: "#E6E6E6", Success: "#CFCFCF", Border: "#8F8F8F"},
	}
}
