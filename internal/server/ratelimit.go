package server

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

const (
	defaultRatePerSecond = 20
	bucketIdleTTL        = 10 * time.Minute
)

type ipBucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter enforces per-IP connection limits using a token bucket.
type RateLimiter struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]ipBucket
	sweep   time.Time
}

// NewRateLimiter refills perSecond tokens every second up to burst.
// Non-positive values fall back to defaults.
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	if burst <= 0 {
		burst = perSecond
	}
	return &RateLimiter{
		rate:    float64(perSecond),
		burst:   burst,
		buckets: make(map[string]ipBucket),
	}
}

// Allow takes one token from ip's bucket.
func (l *RateLimiter) Allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictIdle(now)

	bucket := l.buckets[ip]
	if bucket.last.IsZero() {
		bucket = ipBucket{tokens: float64(l.burst), last: now}
	}

	elapsed := now.Sub(bucket.last).Seconds()
	if elapsed > 0 {
		bucket.tokens += elapsed * l.rate
		if bucket.tokens > float64(l.burst) {
			bucket.tokens = float64(l.burst)
		}
		bucket.last = now
	}

	if bucket.tokens < 1 {
		l.buckets[ip] = bucket
		return false
	}

	bucket.tokens--
	l.buckets[ip] = bucket
	return true
}

// Len reports how many addresses are tracked.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictIdle drops buckets untouched for bucketIdleTTL; a full refill would
// have happened anyway.
func (l *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(l.sweep) < bucketIdleTTL {
		return
	}
	l.sweep = now
	for ip, b := range l.buckets {
		if now.Sub(b.last) >= bucketIdleTTL {
			delete(l.buckets, ip)
		}
	}
}

// Middleware rejects sessions from addresses over their limit.
func (l *RateLimiter) Middleware(logger *slog.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			now := time.Now().UTC()
			ip := remoteIP(s.RemoteAddr())
			if !l.Allow(ip, now) {
				logger.Warn("rate_limit_throttled", "remote_ip", ip)
				wish.Fatalln(s, "rate limit exceeded")
				return
			}
			next(s)
		}
	}
}

func remoteIP(remote net.Addr) string {
	if remote == nil {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		return remote.String()
	}

	if host == "" {
		return "unknown"
	}
	return host
}
