package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"mosaic-style/internal/config"
	"mosaic-style/internal/prefs"
	"mosaic-style/internal/router"
	"mosaic-style/internal/server"
	"mosaic-style/internal/theme"
	"mosaic-style/internal/themefile"
	"mosaic-style/internal/tui"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "mosaic"})

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("load config", "error", err)
	}
	logger.SetLevel(cfg.LogLevel)
	slogger := slog.New(logger)

	catalog := theme.NewCatalog()
	if cfg.ThemeDir != "" {
		loaded, err := themefile.LoadDir(cfg.ThemeDir, catalog)
		for _, th := range loaded {
			logger.Info("theme loaded", "theme", th.Name)
		}
		if err != nil {
			logger.Warn("theme directory", "dir", cfg.ThemeDir, "error", err)
		}
		watcher, err := themefile.Watch(cfg.ThemeDir, catalog, themefile.WithLogger(slogger))
		if err != nil {
			logger.Fatal("watch theme directory", "dir", cfg.ThemeDir, "error", err)
		}
		defer watcher.Stop()
	}
	if err := cfg.ValidateTheme(catalog); err != nil {
		logger.Fatal("validate config", "error", err)
	}

	chain := router.DefaultChain(server.Admission(cfg, slogger), catalog.Has)
	runtime, err := server.New(cfg, server.Options{
		Chain: chain,
		Program: tui.ProgramHandler(tui.Options{
			Catalog:     catalog,
			Prefs:       prefs.NewFileStore(cfg.PrefsPath),
			Theme:       cfg.Theme,
			ColorScheme: cfg.ColorScheme,
			Logger:      slogger,
		}),
		Logger:        slogger,
		SessionLogger: logger,
	})
	if err != nil {
		logger.Fatal("build ssh server", "error", err)
	}

	if err := runtime.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("run ssh server", "error", err)
	}
}
