package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llamadeskd/pkg/types"
)

func TestSetMaxBodyBytes(t *testing.T) {
	defer SetMaxBodyBytes(1 << 20)
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("negative should reset to default, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("got %d", maxBodyBytes)
	}
}

func TestSetCORSOrigins(t *testing.T) {
	orig := corsAllowedOrigins
	defer func() { corsAllowedOrigins = orig }()

	SetCORSOrigins(nil)
	if len(corsAllowedOrigins) != len(orig) {
		t.Fatalf("empty should keep defaults")
	}
	SetCORSOrigins([]string{"http://example.com"})
	if len(corsAllowedOrigins) != 1 || corsAllowedOrigins[0] != "http://example.com" {
		t.Fatalf("override failed: %v", corsAllowedOrigins)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override: %v", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("numeric query override: %v", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override: %v", got)
	}
}

func TestJoinContexts(t *testing.T) {
	a, ac := context.WithCancel(context.Background())
	b, bc := context.WithCancel(context.Background())
	defer bc()
	j, cancel := joinContexts(a, b)
	defer cancel()
	ac()
	select {
	case <-j.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context not canceled after parent cancel")
	}
}

func TestSetBaseContextNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatalf("nil should reset to a live background context")
	}
}

func TestWriteJSONError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONError(rr, http.StatusTeapot, "short and stout")
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Error != "short and stout" || e.Code != http.StatusTeapot {
		t.Fatalf("payload: %+v", e)
	}
}

func TestValidateRequest(t *testing.T) {
	rr := httptest.NewRecorder()
	if validateRequest(rr, types.LaunchRequest{}) {
		t.Fatalf("empty launch request should fail validation")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	if !validateRequest(rr, types.LaunchRequest{ModelPath: "/m/a.gguf"}) {
		t.Fatalf("valid request rejected")
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 200: "200", 404: "404", 99: "99"}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d) = %q", n, got)
		}
	}
}

func TestStatusRecorderFlush(t *testing.T) {
	// Wrapping a flushable writer must keep it flushable for SSE.
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: 200}
	var _ http.Flusher = sr
	sr.Flush()
	if !rr.Flushed {
		t.Fatalf("flush not forwarded")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRoutePatternOrPathFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/plain/path", nil)
	if got := routePatternOrPath(r); got != "/plain/path" {
		t.Fatalf("fallback = %q", got)
	}
}
