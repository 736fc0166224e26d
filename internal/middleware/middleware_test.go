package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/requestinfo"
)

func TestSecurity_SetsHeadersBeforeHandler(t *testing.T) {
	h := Security(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Fatal("missing HSTS")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Fatalf("handler override lost: %q", got)
	}
}

func TestForceHTTPS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	ForceHTTPS(true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://k9.example/api/pages?x=1", nil))
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://k9.example/api/pages?x=1" {
		t.Fatalf("Location = %q", loc)
	}

	rec = httptest.NewRecorder()
	ForceHTTPS(true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("localhost redirected: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://k9.example/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	ForceHTTPS(true)(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("proxied https redirected: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ForceHTTPS(false)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://k9.example/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled wrapper redirected: %d", rec.Code)
	}
}

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"k9.example":      "k9.example",
		"k9.example:8443": "k9.example",
		"[::1]:8080":      "[::1]",
	}
	for in, want := range cases {
		if got := stripPort(in); got != want {
			t.Fatalf("stripPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccess_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Access)
	r.Get("/api/pages/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/pages/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/pages/abc", nil))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/pages/{id}", "404"))

	if after-before != 1 {
		t.Fatalf("counter moved by %v", after-before)
	}
}

func TestAccess_LogsRequestInfo(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	r := chi.NewRouter()
	r.Use(requestinfo.Enrich)
	r.Use(Access)
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d access lines", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["bot"] != true {
		t.Errorf("bot = %v", fields["bot"])
	}
	if _, ok := fields["device"]; !ok {
		t.Error("device missing from access line")
	}
	if _, ok := fields["country"]; !ok {
		t.Error("country missing from access line")
	}
}
