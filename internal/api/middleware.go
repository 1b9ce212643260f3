package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiters is a per-IP rate.Limiter map guarded by a single mutex,
// with idle-entry eviction, the same shape for both the hierarchy and data
// governors.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: map[string]*limiterEntry{},
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(c.rate, c.burst)}
		c.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	c.evictIdleLocked()
	return entry.limiter.Allow()
}

// evictIdleLocked drops entries untouched for 10 minutes, bounding the
// map's size under a sustained stream of distinct client IPs. Caller must
// hold c.mu.
func (c *clientLimiters) evictIdleLocked() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for key, entry := range c.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(c.limiters, key)
		}
	}
}

// clientIP extracts the caller's address following the fallback chain:
// the first X-Forwarded-For entry, then X-Real-IP, then the peer address,
// then a loopback sentinel if nothing else parses.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "127.0.0.1"
}

// rateLimited wraps next with limiters, rejecting with 429 when the
// caller's IP has exhausted its burst. A nil limiters disables the check
// entirely (DISABLE_RATE_LIMITING=true).
func rateLimited(limiters *clientLimiters, next http.HandlerFunc) http.HandlerFunc {
	if limiters == nil {
		return next
	}
	return func(rw http.ResponseWriter, r *http.Request) {
		if !limiters.allow(clientIP(r)) {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusTooManyRequests)
			rw.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next(rw, r)
	}
}

// healthz always responds 200; it is never rate-limited and mounted
// outside the /api prefix.
func healthz(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte(`{"status":"ok"}`))
}
