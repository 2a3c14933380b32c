package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func sendFrom(t *testing.T, handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestEdgeLimiter_UnderLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	handler := NewEdgeLimiter(rdb, 5, 60).Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rr := sendFrom(t, handler, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
	}
}

func TestEdgeLimiter_OverLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	handler := NewEdgeLimiter(rdb, 3, 60).Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rr := sendFrom(t, handler, "10.0.0.1:1234")
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := sendFrom(t, handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestEdgeLimiter_SeparateIPs(t *testing.T) {
	rdb := setupMiniredis(t)
	handler := NewEdgeLimiter(rdb, 1, 60).Middleware(okHandler())

	rr := sendFrom(t, handler, "10.0.0.1:1234")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = sendFrom(t, handler, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = sendFrom(t, handler, "10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, rr.Code, "a different IP gets its own window")
}

func TestEdgeLimiter_FailsOpenOnRedisError(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	s.Close()

	handler := NewEdgeLimiter(rdb, 1, 60).Middleware(okHandler())

	rr := sendFrom(t, handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rr.Code, "redis being down must not block traffic")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.9, 203.0.113.7")
	assert.Equal(t, "198.51.100.9", clientIP(req))
}
