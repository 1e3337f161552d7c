// Package theme holds the named, immutable themes style recipes read from.
//
// Integration example:
//
//	catalog := theme.NewCatalog()
//	dark, err := catalog.Adaptive(theme.SchemeDark)
//	if err != nil {
//		return err
//	}
//	t, profile, err := catalog.ResolveForTerm(theme.NameWest, theme.ResolveOptions{Term: os.Getenv("TERM")})
//	if err != nil {
//		return err
//	}
//	logger.Info("theme resolved", "theme", t.Name, "fallback", dark.Name, "colors", profile.Colors)
package theme
