package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/roadmap/internal/model"
)

func newRateLimitedHandler(t *testing.T, cfg RateLimiterConfig) (http.Handler, *RateLimiter) {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)

	h := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return h, rl
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	return req.WithContext(ContextWithClientIP(req.Context(), ip))
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	handler, _ := newRateLimitedHandler(t, RateLimiterConfig{Rate: 2, Burst: 5, CleanupInterval: time.Minute})

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1"))

		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	handler, _ := newRateLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.2"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.2"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retryAfter := w.Header().Get("Retry-After")
	sec, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Fatalf("Retry-After should be a number, got %q", retryAfter)
	}
	if sec < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", sec)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
	if body.RetryAfter != int64(sec)*1000 {
		t.Errorf("retryAfter = %d, want %d", body.RetryAfter, sec*1000)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	handler, rl := newRateLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.3"))
	if w.Code != http.StatusOK {
		t.Fatalf("client A first request: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.3"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("client A second request: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.4"))
	if w.Code != http.StatusOK {
		t.Errorf("client B first request: status = %d, want 200", w.Code)
	}

	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount = %d, want 2", got)
	}
}

func TestRateLimitMiddleware_MissingClientIPSharesUnknownBucket(t *testing.T) {
	handler, rl := newRateLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/issues", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/issues", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}

	if got := rl.LimiterCount(); got != 1 {
		t.Errorf("LimiterCount = %d, want 1", got)
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	rl.Stop()

	rl.allow("10.0.0.5")
	rl.mu.Lock()
	rl.limiters["10.0.0.5"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()
	rl.allow("10.0.0.6")

	if removed := rl.cleanup(); removed != 1 {
		t.Errorf("cleanup removed = %d, want 1", removed)
	}
	if got := rl.LimiterCount(); got != 1 {
		t.Errorf("LimiterCount = %d, want 1", got)
	}
}

func TestNewRateLimiter_InvalidConfigFallsBackToDefault(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: -1})
	defer rl.Stop()

	def := DefaultRateLimiterConfig()
	if rl.config.Rate != def.Rate || rl.config.Burst != def.Burst {
		t.Errorf("config = %+v, want rate=%v burst=%d", rl.config, def.Rate, def.Burst)
	}
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(60)
	if cfg.Rate != 1 {
		t.Errorf("Rate = %v, want 1", cfg.Rate)
	}
	if cfg.Burst != 60 {
		t.Errorf("Burst = %d, want 60", cfg.Burst)
	}

	if got := PerMinute(0); got.Burst != DefaultRateLimiterConfig().Burst {
		t.Errorf("PerMinute(0).Burst = %d, want default", got.Burst)
	}
}
