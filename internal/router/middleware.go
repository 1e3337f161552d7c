package router

import (
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

type contextKey string

const (
	sessionIdentityKey contextKey = "identity"
	sessionMetadataKey contextKey = "session-metadata"
)

// maxUsernameLength bounds usernames considered for theme routing.
const maxUsernameLength = 64

const (
	routeTheme = "theme"
	routeGuest = "guest"
)

// Descriptor names one middleware so the chain order can be logged and
// asserted.
type Descriptor struct {
	Name       string
	Middleware wish.Middleware
}

// Identity is who connected and which theme their username selects.
type Identity struct {
	Username string
	Route    string
	Theme    string
}

// SessionInfo is the per-session metadata handed to the UI.
type SessionInfo struct {
	Identity    Identity
	RemoteAddr  string
	ConnectedAt time.Time
}

// ThemeLookup reports whether a theme name is registered.
type ThemeLookup func(name string) bool

// DefaultChain wires the middleware chain in execution order: connection
// admission first, then username routing and session metadata.
func DefaultChain(admission []Descriptor, themes ThemeLookup) []Descriptor {
	chain := make([]Descriptor, 0, len(admission)+2)
	chain = append(chain, admission...)
	chain = append(chain,
		Descriptor{Name: "username-routing", Middleware: usernameRouting(themes)},
		Descriptor{Name: "session-metadata", Middleware: sessionMetadata(time.Now)},
	)
	return chain
}

// MiddlewareFromDescriptors returns the middleware in the order wish expects
// so that chain[0] runs first. wish composes first to last, which makes the
// last middleware the outermost.
func MiddlewareFromDescriptors(chain []Descriptor) []wish.Middleware {
	out := make([]wish.Middleware, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Middleware)
	}
	return out
}

// Names returns the descriptor names in order.
func Names(chain []Descriptor) []string {
	out := make([]string, 0, len(chain))
	for _, d := range chain {
		out = append(out, d.Name)
	}
	return out
}

// ResolveIdentity maps a username to an identity. Only exact theme names
// route to a theme; anything else is a guest using the server default.
func ResolveIdentity(username string, themes ThemeLookup) Identity {
	if username != "" && len(username) <= maxUsernameLength && themes != nil && themes(username) {
		return Identity{Username: username, Route: routeTheme, Theme: username}
	}
	return Identity{Username: username, Route: routeGuest}
}

func usernameRouting(themes ThemeLookup) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			s.Context().SetValue(sessionIdentityKey, ResolveIdentity(s.User(), themes))
			next(s)
		}
	}
}

func sessionMetadata(now func() time.Time) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			ctx := s.Context()
			identity, _ := ctx.Value(sessionIdentityKey).(Identity)
			info := SessionInfo{Identity: identity, ConnectedAt: now().UTC()}
			if addr := s.RemoteAddr(); addr != nil {
				info.RemoteAddr = addr.String()
			}
			ctx.SetValue(sessionMetadataKey, info)
			next(s)
		}
	}
}

// SessionInfoFrom returns the metadata stored by the session-metadata
// middleware.
func SessionInfoFrom(ctx ssh.Context) (SessionInfo, bool) {
	if ctx == nil {
		return SessionInfo{}, false
	}
	info, ok := ctx.Value(sessionMetadataKey).(SessionInfo)
	return info, ok
}
