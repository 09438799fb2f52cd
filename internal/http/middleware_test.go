package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-lab/internal/observability"
	"github.com/kjstillabower/forecast-lab/internal/traffic"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value("correlation_id").(string)
		if _, ok := r.Context().Value("logger").(*zap.Logger); !ok {
			t.Error("request logger missing from context")
		}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if seen == "" {
		t.Fatal("correlation_id missing from context")
	}
	if got := w.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
	}
}

func TestCorrelationIDMiddleware_ReusesIncomingID(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "upstream-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "upstream-id" {
		t.Errorf("X-Correlation-ID = %q, want upstream-id", got)
	}
}

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	_, router := newTestRouter(t, nil, Options{})
	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/comparisons/{id}", "4xx")
	before := testutil.ToFloat64(counter)

	serve(router, http.MethodGet, "/api/comparisons/abc", "")
	serve(router, http.MethodGet, "/api/comparisons/def", "")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests counted under template = %v, want 2", got)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if during < 1 {
		t.Errorf("in-flight during request = %d, want >= 1", during)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("in-flight after request = %d, want 0", got)
	}
}

func TestGetRoute_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := getRoute(req); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 429: "4xx", 504: "5xx"}
	for code, want := range tests {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var ctxErr error
	handler := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("request context has no deadline")
		}
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if ctxErr != context.DeadlineExceeded {
		t.Errorf("context error = %v, want DeadlineExceeded", ctxErr)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	logger := zap.NewNop()
	h := NewHandler(newTestService(0), nil, logger, Options{})
	router := NewRouter(h, RouterConfig{Logger: logger, Limiter: rate.NewLimiter(rate.Limit(1), 1)})
	deniedBefore := testutil.ToFloat64(observability.RateLimitDeniedTotal)

	first := serve(router, http.MethodGet, "/api/models", "")
	second := serve(router, http.MethodGet, "/api/models", "")

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if code := errorCode(t, second); code != "RATE_LIMITED" {
		t.Errorf("error code = %q, want RATE_LIMITED", code)
	}
	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
	if got := testutil.ToFloat64(observability.RateLimitDeniedTotal) - deniedBefore; got != 1 {
		t.Errorf("rateLimitDeniedTotal delta = %v, want 1", got)
	}
}

func TestRateLimitMiddleware_ExemptsHealthAndMetrics(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	logger := zap.NewNop()
	h := NewHandler(newTestService(0), nil, logger, Options{})
	router := NewRouter(h, RouterConfig{Logger: logger, Limiter: rate.NewLimiter(rate.Limit(1), 1)})

	serve(router, http.MethodGet, "/api/models", "")
	for _, path := range []string{"/health", "/metrics", "/health"} {
		if w := serve(router, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !called {
		t.Error("next handler not called with nil limiter")
	}
}

func TestRouter_MethodMismatch(t *testing.T) {
	_, router := newTestRouter(t, nil, Options{})

	if w := serve(router, http.MethodGet, "/api/predict", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/predict status = %d, want 405", w.Code)
	}
}

func TestRouter_LatestNotShadowedByID(t *testing.T) {
	_, router := newTestRouter(t, nil, Options{})

	if w := serve(router, http.MethodGet, "/api/comparisons/latest", ""); w.Code != http.StatusOK {
		t.Errorf("GET /api/comparisons/latest status = %d, want 200", w.Code)
	}
}
