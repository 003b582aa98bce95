package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRateLimitChecker struct {
	allowed   bool
	remaining int
	resetAt   int64
	keys      []string
}

func (f *fakeRateLimitChecker) Check(ctx context.Context, key string, limit int) (bool, int, int64) {
	f.keys = append(f.keys, key)
	return f.allowed, f.remaining, f.resetAt
}

func rateLimitedRequest(m *RedisRateLimitMiddleware, remoteAddr string) (*httptest.ResponseRecorder, *bool) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/product", nil)
	req.RemoteAddr = remoteAddr
	m.Handler(next).ServeHTTP(rec, req)
	return rec, &nextCalled
}

func TestRedisRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		checker := &fakeRateLimitChecker{allowed: true, remaining: 4, resetAt: 1700000060}
		m := &RedisRateLimitMiddleware{limiter: checker, limit: 5}

		rec, nextCalled := rateLimitedRequest(m, "10.0.0.1:54321")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *nextCalled)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1700000060", rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("blocks requests over the limit", func(t *testing.T) {
		checker := &fakeRateLimitChecker{allowed: false, remaining: 0, resetAt: 1700000060}
		m := &RedisRateLimitMiddleware{limiter: checker, limit: 5}

		rec, nextCalled := rateLimitedRequest(m, "10.0.0.1:54321")

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.False(t, *nextCalled)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	})

	t.Run("keys the window by client ip without port", func(t *testing.T) {
		checker := &fakeRateLimitChecker{allowed: true}
		m := &RedisRateLimitMiddleware{limiter: checker, limit: 5}

		rateLimitedRequest(m, "203.0.113.7:1234")

		require.Len(t, checker.keys, 1)
		assert.Equal(t, "203.0.113.7", checker.keys[0])
	})

	t.Run("falls back to the raw address when unparseable", func(t *testing.T) {
		checker := &fakeRateLimitChecker{allowed: true}
		m := &RedisRateLimitMiddleware{limiter: checker, limit: 5}

		rateLimitedRequest(m, "203.0.113.7")

		require.Len(t, checker.keys, 1)
		assert.Equal(t, "203.0.113.7", checker.keys[0])
	})
}
