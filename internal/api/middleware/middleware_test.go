package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Vanaheimr/Hermod-sub016/internal/logging"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
)

func TestU_RequestID(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get(HeaderRequestID); len(got) != 32 {
		t.Errorf("generated request id = %q, want 32 hex chars", got)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, " given ")
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "given" {
		t.Errorf("request id = %q, want given", got)
	}
}

func TestU_Logger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var scoped bool
	h := RequestID(Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.From(r.Context()).Debug("inside")
		scoped = true
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	if !scoped {
		t.Fatal("handler not called")
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(entries))
	}
	if entries[0].Message != "inside" || entries[0].ContextMap()["path"] != "/x" {
		t.Errorf("scoped entry = %+v", entries[0])
	}
	done := entries[1]
	if done.Message != "request completed" || done.Level != zap.WarnLevel {
		t.Errorf("completion entry = %s at %s", done.Message, done.Level)
	}
	if done.ContextMap()["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", done.ContextMap()["status"])
	}
}

func TestU_Recoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic not logged")
	}
}

func TestU_CORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name      string
		allowed   []string
		origin    string
		wantAllow string
	}{
		{"[Unit] listed origin", []string{"https://a.example/"}, "https://a.example", "https://a.example"},
		{"[Unit] other origin", []string{"https://a.example"}, "https://b.example", ""},
		{"[Unit] wildcard", []string{"*"}, "https://b.example", "https://b.example"},
		{"[Unit] wildcard without origin", []string{"*"}, "", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestU_Metrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",path="/items/{id}",status="200"} 2`,
		`http_requests_total{method="GET",path="unmatched",status="404"} 1`,
		`http_inflight_requests 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	// A nil collector must not break the chain.
	rec = httptest.NewRecorder()
	Metrics(nil)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}
