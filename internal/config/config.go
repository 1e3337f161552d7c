package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mosaic-style/internal/theme"
)

const (
	defaultHost               = "0.0.0.0"
	defaultPort               = 2222
	defaultHostKeyPath        = ".data/host_ed25519"
	defaultIdleTimeout        = 120 * time.Second
	defaultMaxSessions        = 32
	defaultRateLimitPerSecond = 20
	defaultPrefsPath          = ".data/prefs.json"
	minimumRateLimit          = 1
	maximumConfiguredSessions = 1024

	// AdaptiveTheme makes the ambient theme follow the color scheme.
	AdaptiveTheme = "adaptive"
)

// Config captures startup settings for the deploy entrypoint.
type Config struct {
	Host               string
	Port               int
	HostKeyPath        string
	IdleTimeout        time.Duration
	MaxSessions        int
	RateLimitPerSecond int

	// Theme is a catalog theme name or AdaptiveTheme.
	Theme       string
	ColorScheme theme.Scheme
	ThemeDir    string
	PrefsPath   string
	LogLevel    log.Level
}

// Adaptive reports whether the ambient theme follows the color scheme.
func (c Config) Adaptive() bool { return c.Theme == AdaptiveTheme }

// LoadFromEnv loads runtime configuration from environment variables.
func LoadFromEnv() (Config, error) {
	host, err := readRequiredOrDefault("MOSAIC_SSH_HOST", defaultHost)
	if err != nil {
		return Config{}, err
	}

	port, err := readInt("MOSAIC_SSH_PORT", defaultPort, 1, 65535)
	if err != nil {
		return Config{}, err
	}

	hostKeyPath, err := readRequiredOrDefault("MOSAIC_SSH_HOST_KEY_PATH", defaultHostKeyPath)
	if err != nil {
		return Config{}, err
	}
	cleanHostKeyPath := filepath.Clean(hostKeyPath)
	if cleanHostKeyPath == "." {
		return Config{}, fmt.Errorf("MOSAIC_SSH_HOST_KEY_PATH must not resolve to current directory")
	}

	idleTimeout, err := readDuration("MOSAIC_SSH_IDLE_TIMEOUT", defaultIdleTimeout)
	if err != nil {
		return Config{}, err
	}

	maxSessions, err := readInt("MOSAIC_SSH_MAX_SESSIONS", defaultMaxSessions, 1, maximumConfiguredSessions)
	if err != nil {
		return Config{}, err
	}

	rateLimitPerSecond, err := readInt("MOSAIC_SSH_RATE_LIMIT_PER_SECOND", defaultRateLimitPerSecond, minimumRateLimit, 10000)
	if err != nil {
		return Config{}, err
	}

	themeName, err := readRequiredOrDefault("MOSAIC_THEME", AdaptiveTheme)
	if err != nil {
		return Config{}, err
	}
	themeName = strings.ToLower(strings.TrimSpace(themeName))

	rawScheme, err := readRequiredOrDefault("MOSAIC_COLOR_SCHEME", string(theme.SchemeDark))
	if err != nil {
		return Config{}, err
	}
	scheme, err := theme.ParseScheme(rawScheme)
	if err != nil {
		return Config{}, fmt.Errorf("MOSAIC_COLOR_SCHEME: %w", err)
	}

	themeDir := strings.TrimSpace(os.Getenv("MOSAIC_THEME_DIR"))
	if themeDir != "" {
		themeDir = filepath.Clean(themeDir)
	}

	prefsPath, err := readRequiredOrDefault("MOSAIC_PREFS_PATH", defaultPrefsPath)
	if err != nil {
		return Config{}, err
	}

	rawLevel, err := readRequiredOrDefault("MOSAIC_LOG_LEVEL", "info")
	if err != nil {
		return Config{}, err
	}
	level, err := log.ParseLevel(rawLevel)
	if err != nil {
		return Config{}, fmt.Errorf("MOSAIC_LOG_LEVEL: %w", err)
	}

	return Config{
		Host:               host,
		Port:               port,
		HostKeyPath:        cleanHostKeyPath,
		IdleTimeout:        idleTimeout,
		MaxSessions:        maxSessions,
		RateLimitPerSecond: rateLimitPerSecond,
		Theme:              themeName,
		ColorScheme:        scheme,
		ThemeDir:           themeDir,
		PrefsPath:          filepath.Clean(prefsPath),
		LogLevel:           level,
	}, nil
}

// ValidateTheme checks the configured theme against the catalog once theme
// files have been loaded.
func (c Config) ValidateTheme(catalog *theme.Catalog) error {
	if c.Adaptive() || catalog.Has(c.Theme) {
		return nil
	}
	return fmt.Errorf("MOSAIC_THEME: %w: %s", theme.ErrUnknownTheme, c.Theme)
}

func readRequiredOrDefault(key, fallback string) (string, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}

	return raw, nil
}

func readInt(key string, fallback, min, max int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}

	return parsed, nil
}

func readDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}
