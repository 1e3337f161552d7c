// Package server wires configuration, middleware and the Bubble Tea program
// handler into a Wish SSH server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/muesli/termenv"

	"mosaic-style/internal/config"
	"mosaic-style/internal/router"
)

const (
	version         = "dev"
	shutdownTimeout = 10 * time.Second
)

// Runtime wires config + middleware + Wish server as a testable unit.
type Runtime struct {
	cfg           config.Config
	middlewareIDs []string
	server        *ssh.Server
	logger        *slog.Logger
}

// Options carries the collaborators a runtime needs.
type Options struct {
	// Chain is the named middleware chain in execution order.
	Chain []router.Descriptor
	// Program builds the Bubble Tea program for an interactive session.
	Program bm.ProgramHandler
	// Logger receives runtime events. SessionLogger, if set, also records
	// one structured line per session.
	Logger        *slog.Logger
	SessionLogger *log.Logger
}

// Admission returns the connection admission descriptors for cfg: per-IP
// rate limiting followed by the max sessions gate.
func Admission(cfg config.Config, logger *slog.Logger) []router.Descriptor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limiter := NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitPerSecond)
	gate := NewSessionGate(cfg.MaxSessions)
	return []router.Descriptor{
		{Name: "rate-limit", Middleware: limiter.Middleware(logger)},
		{Name: "session-gate", Middleware: gate.Middleware(logger)},
	}
}

// New builds the server. Middleware run in chain order, then the program
// handler for sessions with an active terminal.
func New(cfg config.Config, opts Options) (*Runtime, error) {
	if opts.Program == nil {
		return nil, errors.New("server: program handler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// wish runs the last middleware first.
	middleware := []wish.Middleware{
		bm.MiddlewareWithProgramHandler(opts.Program, termenv.ANSI256),
		activeterm.Middleware(),
	}
	middleware = append(middleware, router.MiddlewareFromDescriptors(opts.Chain)...)
	if opts.SessionLogger != nil {
		middleware = append(middleware, logging.StructuredMiddlewareWithLogger(opts.SessionLogger, log.InfoLevel))
	}

	srv, err := wish.NewServer(
		wish.WithAddress(address),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(middleware...),
	)
	if err != nil {
		return nil, fmt.Errorf("build ssh server: %w", err)
	}

	return &Runtime{
		cfg:           cfg,
		middlewareIDs: router.Names(opts.Chain),
		server:        srv,
		logger:        logger,
	}, nil
}

func (r *Runtime) MiddlewareIDs() []string {
	out := make([]string, len(r.middlewareIDs))
	copy(out, r.middlewareIDs)
	return out
}

func (r *Runtime) Address() string {
	return r.server.Addr
}

// Run serves until ctx is done or the process receives SIGINT/SIGTERM.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := r.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			r.logger.Error("shutdown", "error", err)
		}
	}()

	r.logger.Info("startup",
		"version", version,
		"address", r.Address(),
		"middleware", r.middlewareIDs,
		"host_key_path", r.cfg.HostKeyPath,
		"idle_timeout", r.cfg.IdleTimeout,
		"max_sessions", r.cfg.MaxSessions,
		"theme", r.cfg.Theme,
	)
	err := r.server.ListenAndServe()
	if errors.Is(err, ssh.ErrServerClosed) || err == nil {
		r.logger.Info("shutdown_complete")
		return nil
	}

	return err
}
