package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/scurrysheets/internal/metrics"
	"github.com/hitoshi/scurrysheets/internal/middleware"
)

func TestNewRouter_Health(t *testing.T) {
	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["status"] != "ok" {
		t.Errorf("body = %v, err = %v", body, err)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-ID ヘッダーが付与されていない")
	}
}

func TestNewRouter_CallbackRoute(t *testing.T) {
	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /auth/callback status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Referrer-Policy") != "no-referrer" {
		t.Error("セキュリティヘッダーが付与されていない")
	}
}

func TestNewRouter_LoginRoute(t *testing.T) {
	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("GET /auth/login status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

func TestNewRouter_AuthRoutesAreRateLimited(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: 0.01, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()
	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}, RateLimiter: rl})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/auth/callback?code=a", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/auth/callback?code=b", nil))

	if first.Code != http.StatusOK {
		t.Errorf("1回目 status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("2回目 status = %d, want 429", second.Code)
	}

	// /health はレート制限の対象外
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", health.Code)
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordAuthEvent("SIGNED_IN")

	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}, Gatherer: reg})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "scurrysheets_auth_events_total") {
		t.Error("メトリクスが含まれていない")
	}
}

func TestNewRouter_MetricsDisabledWithoutGatherer(t *testing.T) {
	router := NewRouter(&RouterDeps{AuthService: &mockAuthService{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("GET /metrics status = %d, want 404", w.Code)
	}
}
