package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(0, 3, KeyByAccountOrIP())
	r := limitedRouter(rl)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, w.Code)
		}
	}

	// Burst exhausted, zero refill: the next one must be rejected.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After on 429")
	}
	if !strings.Contains(w.Body.String(), `"code":"rate_limited"`) {
		t.Fatalf("unexpected 429 body: %s", w.Body.String())
	}
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	// Key by a header so the test can simulate two clients.
	rl := NewRateLimiter(0, 1, func(c *gin.Context) string {
		return c.GetHeader("X-Tenant")
	})
	r := limitedRouter(rl)

	hit := func(tenant string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Tenant", tenant)
		r.ServeHTTP(w, req)
		return w.Code
	}

	if hit("a") != http.StatusOK {
		t.Fatal("first request for a should pass")
	}
	if hit("a") != http.StatusTooManyRequests {
		t.Fatal("second request for a should be limited")
	}
	if hit("b") != http.StatusOK {
		t.Fatal("tenant b has its own bucket")
	}
}

func TestRateLimiter_BurstCoercedToOne(t *testing.T) {
	rl := NewRateLimiter(5, 0, KeyByAccountOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
}

func TestRateLimiter_IdleBucketEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByAccountOrIP())
	rl.ttl = time.Nanosecond

	rl.getVisitor("stale")
	rl.visitors["stale"].lastSeen = time.Now().Add(-time.Minute)

	// Force the sweep threshold, then trigger it with another lookup.
	rl.cleanupN = 4999
	rl.getVisitor("fresh")

	rl.mu.Lock()
	_, ok := rl.visitors["stale"]
	rl.mu.Unlock()
	if ok {
		t.Fatal("stale bucket survived the sweep")
	}
}

func TestKeyByAccountOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByAccountOrIP()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := keyFn(c); !strings.HasPrefix(got, "ip:") {
		t.Fatalf("anonymous key = %q, want ip: prefix", got)
	}

	c.Set(ctxKeyAccountID, "acc-1")
	if got := keyFn(c); got != "account:acc-1" {
		t.Fatalf("authenticated key = %q", got)
	}
}
