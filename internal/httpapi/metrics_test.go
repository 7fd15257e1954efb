package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", w.Code)
	}
	return w.Body.Bytes()
}

func preview(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := scrape(t)
	if !bytes.Contains(body, []byte("iorganise_http_requests_total")) {
		t.Fatalf("expected iorganise_http_requests_total in metrics; got: %q", preview(body))
	}
}

func TestMetricsMiddleware_RoutePatternLabel(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.signup(t, "Ada")
	env.do(authGet("/files/12345", tok))
	body := scrape(t)
	if !bytes.Contains(body, []byte(`path="/files/{id}"`)) {
		t.Fatalf("route pattern label missing; got: %q", preview(body))
	}
	if bytes.Contains(body, []byte(`path="/files/12345"`)) {
		t.Fatalf("raw path used as label")
	}
}

func TestBackpressureCounter(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodPost, "/x", nil), mockHTTPError{"busy", http.StatusTooManyRequests})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if body := scrape(t); !bytes.Contains(body, []byte(`iorganise_http_backpressure_total{reason="registry"}`)) {
		t.Fatalf("backpressure counter missing")
	}
}
