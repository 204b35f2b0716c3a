package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

func rateLimitedEcho(t *testing.T, max int) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.String(apperror.SafeCode(err), apperror.SafeMessage(err))
	}
	e.POST("/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RateLimit(rdb, "login", max, time.Minute))
	return e, mr
}

func postFrom(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterMax(t *testing.T) {
	e, mr := rateLimitedEcho(t, 3)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postFrom(e, "192.0.2.1").Code, "request %d", i+1)
	}

	rec := postFrom(e, "192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, postFrom(e, "192.0.2.2").Code)

	// Counters expire with the window.
	var found bool
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, rateLimitKeyPrefix+"login:192.0.2.1:") {
			found = true
			assert.True(t, mr.TTL(key) > 0 && mr.TTL(key) <= time.Minute)
		}
	}
	assert.True(t, found, "expected a counter key in redis")
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	e, mr := rateLimitedEcho(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, postFrom(e, "192.0.2.1").Code)
	}
}
