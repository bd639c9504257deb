package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amoylab/agridash/internal/auth/jwt"
	"github.com/amoylab/agridash/internal/common/errorx"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustNewJWTService(t *testing.T, d time.Duration) *jwt.Service {
	t.Helper()
	s, err := jwt.NewService(jwt.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: d})
	require.NoError(t, err)
	return s
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID(), errorx.NewErrorHandler(zap.NewNop()).ErrorMiddleware())
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestJWTAuth(t *testing.T) {
	svc := mustNewJWTService(t, time.Hour)
	r := newEngine()
	r.GET("/p", JWTAuth(svc), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": c.GetString(UserRoleKey)})
	})

	t.Run("missing header", func(t *testing.T) {
		w := do(r, "/p", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errorx.ErrUnauthorized.Code, errorCode(t, w))
		assert.NotEmpty(t, w.Header().Get(errorx.TraceIDHeader))
	})

	t.Run("bad prefix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errorx.ErrUnauthorized.Code, errorCode(t, w))
	})

	t.Run("invalid token", func(t *testing.T) {
		w := do(r, "/p", "invalid")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errorx.ErrInvalidToken.Code, errorCode(t, w))
	})

	t.Run("reset token is not an access token", func(t *testing.T) {
		tok, _, err := svc.GenerateResetToken(7, "a@b.c", "fp")
		require.NoError(t, err)
		w := do(r, "/p", tok)
		assert.Equal(t, errorx.ErrInvalidToken.Code, errorCode(t, w))
	})

	t.Run("valid", func(t *testing.T) {
		tok, _, err := svc.GenerateToken(7, "a@b.c", "researcher")
		require.NoError(t, err)
		w := do(r, "/p", tok)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":7,"role":"researcher"}`, w.Body.String())
	})
}

func TestJWTAuth_Expired(t *testing.T) {
	svc := mustNewJWTService(t, time.Millisecond)
	tok, _, err := svc.GenerateToken(1, "a@b.c", "user")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	r := newEngine()
	r.GET("/p", JWTAuth(svc), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := do(r, "/p", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errorx.ErrTokenExpired.Code, errorCode(t, w))
}

func TestOptionalAuth(t *testing.T) {
	svc := mustNewJWTService(t, time.Hour)
	r := newEngine()
	r.GET("/p", OptionalAuth(svc), func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	assert.JSONEq(t, `{"id":0}`, do(r, "/p", "").Body.String())
	assert.JSONEq(t, `{"id":0}`, do(r, "/p", "garbage").Body.String())

	tok, _, err := svc.GenerateToken(42, "a@b.c", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, do(r, "/p", tok).Body.String())
}

func TestRequireRoles(t *testing.T) {
	svc := mustNewJWTService(t, time.Hour)
	r := newEngine()
	r.GET("/admin", JWTAuth(svc), RequireRoles("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	user, _, _ := svc.GenerateToken(1, "u@b.c", "user")
	admin, _, _ := svc.GenerateToken(2, "a@b.c", "admin")

	w := do(r, "/admin", user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errorx.ErrForbidden.Code, errorCode(t, w))

	assert.Equal(t, http.StatusNoContent, do(r, "/admin", admin).Code)
}

func TestTraceID_HonorsClientHeader(t *testing.T) {
	r := newEngine()
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(errorx.TraceIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(errorx.TraceIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(errorx.TraceIDHeader))
}

func rateLimitedEngine(l Limiter, max int) *gin.Engine {
	r := newEngine()
	r.GET("/p", RateLimit(l, ByClientIP("test"), max, nil, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_Memory(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	r := rateLimitedEngine(l, 2)

	w := do(r, "/p", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)

	w = do(r, "/p", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errorx.ErrRateLimitExceeded.Code, errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)
}

func TestRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLimiter(client, "agridash:ratelimit:", time.Minute)
	t.Cleanup(func() { _ = l.Close() })
	r := rateLimitedEngine(l, 1)

	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/p", "").Code)
	assert.True(t, mr.Exists("agridash:ratelimit:test:192.0.2.1"))

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	l := NewRedisLimiter(client, "rl:", time.Minute)
	mr.Close()

	r := rateLimitedEngine(l, 1)
	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "/p", "").Code)
}

func TestMemoryLimiter_SeparateKeys(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()
	d, _ := l.Allow(ctx, "a", 1)
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a", 1)
	assert.False(t, d.Allowed)
	d, _ = l.Allow(ctx, "b", 1)
	assert.True(t, d.Allowed)
}
