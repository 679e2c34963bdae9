package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visitor-slot-booking/internal/config"
	"github.com/iliyamo/visitor-slot-booking/internal/utils"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, strconv.FormatUint(c.Get(CtxUserID).(uint64), 10)+":"+c.Get(CtxPhone).(string))
	}, JWTAuth("s3cret"))

	if rec := serve(e, http.MethodGet, "/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer junk"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}

	tok, err := utils.NewAccessToken("s3cret", 42, "9876543210", 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + tok.Token})
	if rec.Code != http.StatusOK || rec.Body.String() != "42:9876543210" {
		t.Fatalf("valid token: %d %q", rec.Code, rec.Body.String())
	}

	other, _ := utils.NewAccessToken("other", 42, "9876543210", 5)
	if rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + other.Token}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign signature: status %d", rec.Code)
	}
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func TestTokenBucketBlocksAndRefills(t *testing.T) {
	rdb, _ := newRedis(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := echo.New()
	e.POST("/send-otp", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, newTokenBucket(rateConfig(), rdb, clock))

	for i := 0; i < 2; i++ {
		if rec := serve(e, http.MethodPost, "/send-otp", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := serve(e, http.MethodPost, "/send-otp", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	now = now.Add(time.Minute)
	if rec := serve(e, http.MethodPost, "/send-otp", nil); rec.Code != http.StatusOK {
		t.Fatalf("after refill: status %d", rec.Code)
	}
}

func TestTokenBucketKeysByRoute(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := rateConfig()
	cfg.Capacity = 1
	e := echo.New()
	h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	limit := NewTokenBucket(cfg, rdb)
	e.POST("/send-otp", h, limit)
	e.POST("/login", h, limit)

	if rec := serve(e, http.MethodPost, "/send-otp", nil); rec.Code != http.StatusOK {
		t.Fatalf("send-otp: %d", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/login", nil); rec.Code != http.StatusOK {
		t.Fatalf("login should have its own bucket: %d", rec.Code)
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb, mr := newRedis(t)
	mr.Close()
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(rateConfig(), rdb))

	if rec := serve(e, http.MethodPost, "/login", nil); rec.Code != http.StatusOK {
		t.Fatalf("redis outage must not block: %d", rec.Code)
	}
}

func TestRedisCacheHit(t *testing.T) {
	rdb, mr := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		TTL:          30 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
		Methods:      map[string]bool{http.MethodGet: true},
	}
	var calls int32
	e := echo.New()
	e.GET("/slots", func(c echo.Context) error {
		atomic.AddInt32(&calls, 1)
		return c.JSON(http.StatusOK, echo.Map{"days": c.QueryParam("days")})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/slots?days=3", nil)
	if first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first request should miss")
	}
	second := serve(e, http.MethodGet, "/slots?days=3", nil)
	if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != first.Body.String() {
		t.Fatalf("second request should replay: %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get(echo.HeaderContentType) != echo.MIMEApplicationJSON {
		t.Fatalf("content type not restored: %q", second.Header().Get(echo.HeaderContentType))
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("handler ran %d times", n)
	}

	serve(e, http.MethodGet, "/slots?days=4", nil)
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("different query must miss, handler ran %d times", n)
	}

	mr.FastForward(time.Minute)
	serve(e, http.MethodGet, "/slots?days=3", nil)
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expired entry must miss, handler ran %d times", n)
	}
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", Methods: map[string]bool{http.MethodGet: true}}
	var calls int32
	e := echo.New()
	e.GET("/slots", func(c echo.Context) error {
		atomic.AddInt32(&calls, 1)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false})
	}, NewRedisCache(cfg, rdb))

	serve(e, http.MethodGet, "/slots?start=bad", nil)
	serve(e, http.MethodGet, "/slots?start=bad", nil)
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("error responses must not be cached, handler ran %d times", n)
	}
}
