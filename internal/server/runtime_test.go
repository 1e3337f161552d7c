package server

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/google/go-cmp/cmp"

	"mosaic-style/internal/config"
	"mosaic-style/internal/router"
)

func TestNewRuntimeStartupPipeline(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Host:               "127.0.0.1",
		Port:               2222,
		HostKeyPath:        filepath.Join(t.TempDir(), "host_ed25519"),
		IdleTimeout:        time.Minute,
		RateLimitPerSecond: 10,
		MaxSessions:        4,
	}

	chain := router.DefaultChain(Admission(cfg, nil), func(string) bool { return false })
	runtime, err := New(cfg, Options{
		Chain:   chain,
		Program: func(ssh.Session) *tea.Program { return nil },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := runtime.Address(); got != "127.0.0.1:2222" {
		t.Fatalf("Address() = %q, want %q", got, "127.0.0.1:2222")
	}

	want := []string{"rate-limit", "session-gate", "username-routing", "session-metadata"}
	if diff := cmp.Diff(want, runtime.MiddlewareIDs()); diff != "" {
		t.Fatalf("MiddlewareIDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRequiresProgramHandler(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Host: "127.0.0.1", Port: 2222, HostKeyPath: filepath.Join(t.TempDir(), "key")}
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("New() without program handler expected error")
	}
}
