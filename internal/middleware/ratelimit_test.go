package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newLimitedHandler(t *testing.T, cfg RateLimiterConfig) (http.Handler, *RateLimiter, *int) {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)

	calls := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	return handler, rl, &calls
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=x", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	handler, _, calls := newLimitedHandler(t, RateLimiterConfig{Rate: 2, Burst: 5, CleanupInterval: time.Minute})

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1:1234"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if *calls != 5 {
		t.Errorf("handler call count = %d, want 5", *calls)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	handler, _, calls := newLimitedHandler(t, RateLimiterConfig{Rate: 0.5, Burst: 2, CleanupInterval: time.Minute})

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1234"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:5678"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want 2", resp.Header.Get("Retry-After"))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != CodeRateLimitExceeded {
		t.Errorf("code = %q, want %s", body.Code, CodeRateLimitExceeded)
	}
	if *calls != 2 {
		t.Errorf("handler call count = %d, want 2", *calls)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	handler, rl, _ := newLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, requestFrom("192.0.2.1:1000"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, requestFrom("192.0.2.2:1000"))

	if w1.Code != http.StatusOK || w2.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want 200/200（IPごとに独立）", w1.Code, w2.Code)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	handler, rl, _ := newLimitedHandler(t, RateLimiterConfig{Rate: 2, Burst: 5, CleanupInterval: 50 * time.Millisecond})

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1234"))
	if rl.LimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）。十分に待つ
	time.Sleep(300 * time.Millisecond)

	if count := rl.LimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(NewRateLimiterConfig(10))
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(30)
	if float64(cfg.Rate) != 0.5 {
		t.Errorf("Rate = %v, want 0.5", cfg.Rate)
	}
	if cfg.Burst != 30 {
		t.Errorf("Burst = %d, want 30", cfg.Burst)
	}

	if def := NewRateLimiterConfig(0); def.Burst != 30 {
		t.Errorf("0以下は既定値30: Burst = %d", def.Burst)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:5173", "::1"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
