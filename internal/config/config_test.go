package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"mosaic-style/internal/theme"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}
	if cfg.Port != defaultPort || cfg.IdleTimeout != defaultIdleTimeout || cfg.MaxSessions != defaultMaxSessions {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Adaptive() || cfg.ColorScheme != theme.SchemeDark || cfg.LogLevel != log.InfoLevel {
		t.Fatalf("unexpected appearance defaults: %+v", cfg)
	}
	if cfg.ThemeDir != "" {
		t.Fatalf("ThemeDir = %q, want empty", cfg.ThemeDir)
	}
}

func TestLoadFromEnvAppearance(t *testing.T) {
	t.Setenv("MOSAIC_THEME", " West ")
	t.Setenv("MOSAIC_COLOR_SCHEME", "LIGHT")
	t.Setenv("MOSAIC_THEME_DIR", "themes/")
	t.Setenv("MOSAIC_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}
	if cfg.Theme != "west" || cfg.Adaptive() || cfg.ColorScheme != theme.SchemeLight {
		t.Fatalf("unexpected appearance: %+v", cfg)
	}
	if cfg.ThemeDir != "themes" || cfg.LogLevel != log.DebugLevel {
		t.Fatalf("unexpected theme dir/log level: %q %v", cfg.ThemeDir, cfg.LogLevel)
	}
	if err := cfg.ValidateTheme(theme.NewCatalog()); err != nil {
		t.Fatalf("ValidateTheme() error: %v", err)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port not a number", key: "MOSAIC_SSH_PORT", value: "not-a-number"},
		{name: "port out of range", key: "MOSAIC_SSH_PORT", value: "70000"},
		{name: "whitespace host", key: "MOSAIC_SSH_HOST", value: "   "},
		{name: "host key path is cwd", key: "MOSAIC_SSH_HOST_KEY_PATH", value: "."},
		{name: "idle timeout", key: "MOSAIC_SSH_IDLE_TIMEOUT", value: "not-duration"},
		{name: "negative idle timeout", key: "MOSAIC_SSH_IDLE_TIMEOUT", value: "-1s"},
		{name: "max sessions", key: "MOSAIC_SSH_MAX_SESSIONS", value: "0"},
		{name: "rate limit", key: "MOSAIC_SSH_RATE_LIMIT_PER_SECOND", value: "0"},
		{name: "scheme", key: "MOSAIC_COLOR_SCHEME", value: "sepia"},
		{name: "log level", key: "MOSAIC_LOG_LEVEL", value: "loud"},
		{name: "empty prefs path", key: "MOSAIC_PREFS_PATH", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Fatalf("error %q should name %s", err, tt.key)
			}
		})
	}
}

func TestValidateThemeUnknown(t *testing.T) {
	cfg := Config{Theme: "mystery"}
	if err := cfg.ValidateTheme(theme.NewCatalog()); !errors.Is(err, theme.ErrUnknownTheme) {
		t.Fatalf("ValidateTheme() = %v, want ErrUnknownTheme", err)
	}
}

func TestReadDurationFallback(t *testing.T) {
	got, err := readDuration("MOSAIC_TEST_UNSET_DURATION", 5*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("readDuration() = %v, %v", got, err)
	}
}
