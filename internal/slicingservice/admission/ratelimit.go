// Package admission implements the two gates in front of the slicing
// endpoints: a per-IP fixed-window rate limiter and a bounded FIFO queue
// with a fixed worker set.
package admission

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/printforge/printforge-go-components/internal/common"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter enforces a fixed-window request budget per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	limit   int
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and IP.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 5
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		window:  window,
		limit:   limit,
		now:     time.Now,
	}
}

// Allow records a request from ip and reports whether it fits the current
// window. On denial it returns the whole seconds until the window resets,
// suitable for the Retry-After header.
func (l *RateLimiter) Allow(ip string) (allowed bool, retryAfterSeconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictExpiredLocked(now)

	b, ok := l.buckets[ip]
	if !ok || !b.resetAt.After(now) {
		l.buckets[ip] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if b.count < l.limit {
		b.count++
		return true, 0
	}
	return false, int(math.Ceil(b.resetAt.Sub(now).Seconds()))
}

// evictExpiredLocked drops buckets whose window has passed so the map does
// not grow with one entry per IP ever seen.
func (l *RateLimiter) evictExpiredLocked(now time.Time) {
	for ip, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, ip)
		}
	}
}

// Middleware rejects over-budget requests with 429 and a Retry-After header
// before any filesystem work happens.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.Allow(ClientIP(r))
		if !allowed {
			common.WriteRateLimited(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the client address of a request: the first entry of
// X-Forwarded-For when present, otherwise the socket remote host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
