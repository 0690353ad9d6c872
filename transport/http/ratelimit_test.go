package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	l := NewRateLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// other clients have their own bucket
	assert.True(t, l.Allow("10.0.0.2"))

	assert.Equal(t, 0, l.Cleanup())
}

func TestRateLimiter_Middleware(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(1, 1).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_RateLimitsAuthRoutes(t *testing.T) {
	r, _ := newRouter(t, WithRateLimit(NewRateLimiter(1, 1)))

	status, _ := do(t, r, http.MethodPost, "/auth/challenge", gin.H{"credential_kind": "phone", "credential_value": "+254700000001"}, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, r, http.MethodPost, "/auth/challenge", gin.H{"credential_kind": "phone", "credential_value": "+254700000001"}, "")
	assert.Equal(t, http.StatusTooManyRequests, status)

	// health is not throttled
	status, _ = do(t, r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, status)
}
