// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis returns a client whose commands always fail, so the
// limiter runs on its in-process fallback.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
}

func TestRateLimiter_Allow_FallbackEnforcesLimit(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(), RateLimitConfig{
		Limit: PerMinute(1, 1),
	})

	res, err := rl.Allow(context.Background(), "ratelimit:user:u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)

	res, err = rl.Allow(context.Background(), "ratelimit:user:u1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}

func TestRateLimiter_Allow_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(), RateLimitConfig{
		Limit: PerMinute(1, 1),
	})

	res, err := rl.Allow(context.Background(), "ratelimit:user:u1")
	require.NoError(t, err)
	require.Equal(t, 1, res.Allowed)

	res, err = rl.Allow(context.Background(), "ratelimit:user:u1")
	require.NoError(t, err)
	require.Equal(t, 0, res.Allowed)

	// exhausting one user's window leaves another's untouched
	res, err = rl.Allow(context.Background(), "ratelimit:user:u2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)
}

func TestRateLimiter_Handler_TooManyRequests(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(), RateLimitConfig{
		Limit:    PerMinute(1, 1),
		FailOpen: true,
	})

	handler := rl.Handler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/sync", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code       string `json:"code"`
			RetryAfter int    `json:"retry_after"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Positive(t, body.Error.RetryAfter)
}

func TestKeyByUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/sync", nil)
	req.RemoteAddr = "10.0.0.9:40000"

	// anonymous requests fall back to the IP key
	assert.Equal(t, "ratelimit:ip:10.0.0.9", KeyByUser(req))

	ctx := context.WithValue(req.Context(), UserIDKey, "user-1")
	assert.Equal(t, "ratelimit:user:user-1", KeyByUser(req.WithContext(ctx)))
}

func TestKeyByIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.2")

	assert.Equal(t, "ratelimit:ip:198.51.100.2", KeyByIP(req))
}
