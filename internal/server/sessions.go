package server

import (
	"log/slog"
	"sync"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// SessionGate caps the number of concurrently running sessions.
type SessionGate struct {
	max int

	mu     sync.Mutex
	active int
}

// NewSessionGate allows up to max sessions. max <= 0 means unlimited.
func NewSessionGate(max int) *SessionGate {
	return &SessionGate{max: max}
}

// Acquire reserves a slot. Every successful Acquire must be paired with
// Release.
func (g *SessionGate) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.max > 0 && g.active >= g.max {
		return false
	}
	g.active++
	return true
}

// Release frees a slot.
func (g *SessionGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == 0 {
		panic("server: session gate released more than acquired")
	}
	g.active--
}

// Active reports the number of held slots.
func (g *SessionGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Middleware turns sessions away once the gate is full.
func (g *SessionGate) Middleware(logger *slog.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			if !g.Acquire() {
				logger.Warn("max_sessions_reached", "user", s.User(), "max_sessions", g.max)
				wish.Fatalln(s, "server is at capacity, try again later")
				return
			}
			defer g.Release()
			next(s)
		}
	}
}
