package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPFallbackChain(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	assert.Equal(t, "10.0.0.5", clientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.9")
	assert.Equal(t, "10.0.0.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	assert.Equal(t, "203.0.113.1", clientIP(r))
}

func TestClientLimitersEnforcesBurst(t *testing.T) {
	limiters := newClientLimiters(0, 2)

	assert.True(t, limiters.allow("a"))
	assert.True(t, limiters.allow("a"))
	assert.False(t, limiters.allow("a"))

	// A distinct key gets its own bucket.
	assert.True(t, limiters.allow("b"))
}

func TestRateLimitedNilDisablesCheck(t *testing.T) {
	called := false
	wrapped := rateLimited(nil, func(rw http.ResponseWriter, r *http.Request) { called = true })

	rw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	wrapped(rw, r)

	assert.True(t, called)
}
