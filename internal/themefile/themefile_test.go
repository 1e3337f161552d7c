package themefile

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mosaic-style/internal/theme"
)

const oceanDoc = `
name: ocean
scheme: light
roles:
  primary: "#0077BE"
  accent: "#00A6D6"
surfaces:
  header:
    foreground: "#FFFFFF"
    background: "#0077BE"
    bold: true
`

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr error
		check   func(t *testing.T, th theme.Theme)
	}{
		{
			name: "full document",
			doc:  oceanDoc,
			check: func(t *testing.T, th theme.Theme) {
				if th.Name != "ocean" || th.Scheme != theme.SchemeLight || th.Roles.Primary != "#0077BE" || !th.Surfaces.Header.Bold {
					t.Fatalf("Parse() = %+v", th)
				}
			},
		},
		{
			name: "extends builtin",
			doc:  "name: west-alt\nextends: west\nroles:\n  accent: \"#FF8800\"\n",
			check: func(t *testing.T, th theme.Theme) {
				west, _ := theme.NewCatalog().Lookup(theme.NameWest)
				if th.Roles.Accent != "#FF8800" || th.Roles.Primary != west.Roles.Primary || th.Scheme != west.Scheme {
					t.Fatalf("Parse() = %+v", th)
				}
			},
		},
		{name: "unknown field", doc: "name: x\nscheme: dark\ncolour: red\n", wantErr: ErrInvalidDocument},
		{name: "missing scheme", doc: "name: x\n", wantErr: theme.ErrUnknownScheme},
		{name: "bad color", doc: "name: x\nscheme: dark\nroles:\n  primary: red\n", wantErr: theme.ErrInvalidTheme},
		{name: "unknown base", doc: "name: x\nextends: nowhere\n", wantErr: theme.ErrUnknownTheme},
		{name: "empty", doc: "", wantErr: ErrInvalidDocument},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			th, err := Parse([]byte(tt.doc), theme.NewCatalog())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			tt.check(t, th)
		})
	}
}

func TestLoadDirRegistersInNameOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}
	write("10-ocean.yaml", oceanDoc)
	write("20-deep.yml", "name: deep\nextends: ocean\nscheme: dark\n")
	write("30-broken.yaml", "name: [\n")
	write("notes.txt", "not a theme")

	catalog := theme.NewCatalog()
	loaded, err := LoadDir(dir, catalog)
	if err == nil {
		t.Fatal("LoadDir() should report the broken file")
	}
	if len(loaded) != 2 || loaded[0].Name != "ocean" || loaded[1].Name != "deep" {
		t.Fatalf("loaded = %+v", loaded)
	}
	deep, err := catalog.Lookup("deep")
	if err != nil || deep.Roles.Primary != "#0077BE" || deep.Scheme != theme.SchemeDark {
		t.Fatalf("Lookup(deep) = %+v, %v", deep, err)
	}
}

func TestWatcherReloadsChangedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalog := theme.NewCatalog()
	w, err := Watch(dir, catalog, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer w.Stop()

	changed := make(chan string, 4)
	unsubscribe := catalog.OnChange(func(th theme.Theme) { changed <- th.Name })
	defer unsubscribe()

	if err := os.WriteFile(filepath.Join(dir, "ocean.yaml"), []byte(oceanDoc), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-w.Results():
			if res.Err != nil {
				// A reload can observe a partially written file; the next
				// write event retries it.
				continue
			}
			if res.Theme.Name != "ocean" {
				t.Fatalf("reloaded %q", res.Theme.Name)
			}
			select {
			case name := <-changed:
				if name != "ocean" {
					t.Fatalf("catalog notified for %q", name)
				}
			case <-deadline:
				t.Fatal("catalog listener not notified")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestStopWaitsForRunningReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalog := theme.NewCatalog()
	w, err := Watch(dir, catalog, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	catalog.OnChange(func(theme.Theme) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	if err := os.WriteFile(filepath.Join(dir, "ocean.yaml"), []byte(oceanDoc), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop() returned while a reload was still registering")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return after the reload finished")
	}
}

func TestIsThemeFile(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"a.yaml": true, "b.YML": true, ".hidden.yaml": false, "c.json": false, "yaml": false,
	} {
		if got := IsThemeFile(name); got != want {
			t.Fatalf("IsThemeFile(%q) = %v, want %v", name, got, want)
		}
	}
}
