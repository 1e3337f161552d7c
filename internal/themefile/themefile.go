// Package themefile loads theme definitions from YAML documents and keeps a
// catalog in sync with a directory of them.
package themefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mosaic-style/internal/theme"
)

// ErrInvalidDocument is returned for theme files that cannot be decoded.
var ErrInvalidDocument = errors.New("invalid theme document")

// Document is the on-disk form of a theme. A document may extend a theme
// already in the catalog and override only some of its colors.
type Document struct {
	Name     string              `yaml:"name"`
	Scheme   string              `yaml:"scheme"`
	Extends  string              `yaml:"extends"`
	Surfaces theme.Surfaces      `yaml:"surfaces"`
	Roles    theme.SemanticRoles `yaml:"roles"`
}

// Parse decodes a theme document. Names in extends are resolved against
// catalog.
func Parse(data []byte, catalog *theme.Catalog) (theme.Theme, error) {
	var head Document
	if err := decodeStrict(data, &head); err != nil {
		return theme.Theme{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := Document{}
	if head.Extends != "" {
		base, err := catalog.Lookup(head.Extends)
		if err != nil {
			return theme.Theme{}, fmt.Errorf("%w: extends: %w", ErrInvalidDocument, err)
		}
		doc.Scheme = string(base.Scheme)
		doc.Surfaces = base.Surfaces
		doc.Roles = base.Roles
	}
	if err := decodeStrict(data, &doc); err != nil {
		return theme.Theme{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	scheme, err := theme.ParseScheme(doc.Scheme)
	if err != nil {
		return theme.Theme{}, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, doc.Name, err)
	}
	t := theme.Theme{
		Name:     strings.TrimSpace(doc.Name),
		Scheme:   scheme,
		Surfaces: doc.Surfaces,
		Roles:    doc.Roles,
	}
	if err := t.Validate(); err != nil {
		return theme.Theme{}, err
	}
	return t, nil
}

func decodeStrict(data []byte, out *Document) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// LoadFile parses the theme at path and registers it into catalog.
func LoadFile(path string, catalog *theme.Catalog) (theme.Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return theme.Theme{}, err
	}
	t, err := Parse(data, catalog)
	if err != nil {
		return theme.Theme{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := catalog.Register(t); err != nil {
		return theme.Theme{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// LoadDir registers every theme file in dir, in name order so that
// documents can extend themes defined earlier. Broken files are reported
// together and do not stop the others from loading.
func LoadDir(dir string, catalog *theme.Catalog) ([]theme.Theme, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && IsThemeFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var loaded []theme.Theme
	var errs []error
	for _, name := range names {
		t, err := LoadFile(filepath.Join(dir, name), catalog)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, t)
	}
	return loaded, errors.Join(errs...)
}

// IsThemeFile reports whether name looks like a theme document.
func IsThemeFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
