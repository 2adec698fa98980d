package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTracer swaps the global tracer provider for one backed by an
// in-memory exporter and restores it when the test ends.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

// assistantMux builds the same route shape the server mounts, with every
// route answering via the given handler.
func assistantMux(h http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assistant", h)
	mux.HandleFunc("GET /metrics", h)
	return mux
}

func TestMiddleware_SetsCorrelationIDHeader(t *testing.T) {
	installTestTracer(t)
	m, _ := newTestMetrics(t)

	var inHandler string
	h := Middleware(m)(assistantMux(func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/assistant", nil))

	if len(inHandler) != 32 {
		t.Fatalf("correlation ID in handler = %q, want 32 hex chars", inHandler)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != inHandler {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, inHandler)
	}
}

func TestMiddleware_NamesSpanAfterMatchedRoute(t *testing.T) {
	exp := installTestTracer(t)
	m, _ := newTestMetrics(t)

	h := Middleware(m)(assistantMux(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/assistant", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP POST /assistant" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP POST /assistant")
	}
}

func TestMiddleware_RecordsDurationWithRouteLabel(t *testing.T) {
	installTestTracer(t)
	m, reader := newTestMetrics(t)

	h := Middleware(m)(assistantMux(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/assistant", nil))

	rm := collect(t, reader)
	met := findMetric(rm, "assistant.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if v, ok := dp.Attributes.Value("route"); !ok || v.AsString() != "POST /assistant" {
		t.Errorf("route attribute = %v, want %q", v, "POST /assistant")
	}
	if v, ok := dp.Attributes.Value("method"); !ok || v.AsString() != "POST" {
		t.Errorf("method attribute = %v, want %q", v, "POST")
	}
}

func TestMiddleware_UnmatchedRouteKeepsRawPath(t *testing.T) {
	installTestTracer(t)
	m, reader := newTestMetrics(t)

	// A bare handler never sets r.Pattern, like a request the mux 404s.
	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))

	rm := collect(t, reader)
	met := findMetric(rm, "assistant.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if v, ok := hist.DataPoints[0].Attributes.Value("route"); !ok || v.AsString() != "GET /nope" {
		t.Errorf("route attribute = %v, want %q", v, "GET /nope")
	}
}

func TestMiddleware_RecordsStatusCodeOnSpan(t *testing.T) {
	exp := installTestTracer(t)
	m, _ := newTestMetrics(t)

	h := Middleware(m)(assistantMux(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/assistant", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("response status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatal("expected exactly one span")
	}
	var found bool
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 400 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code attribute")
	}
}

func TestMiddleware_JoinsIncomingTrace(t *testing.T) {
	installTestTracer(t)
	m, _ := newTestMetrics(t)

	h := Middleware(m)(assistantMux(func(http.ResponseWriter, *http.Request) {}))

	const upstreamTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("POST", "/assistant", nil)
	req.Header.Set("traceparent", "00-"+upstreamTraceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != upstreamTraceID {
		t.Errorf("X-Correlation-ID = %q, want upstream trace ID %q", got, upstreamTraceID)
	}
}

func TestMiddleware_LogsServerErrorsAtWarn(t *testing.T) {
	installTestTracer(t)
	m, _ := newTestMetrics(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	h := Middleware(m)(assistantMux(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/assistant", nil))

	logged := buf.String()
	if !strings.Contains(logged, "level=WARN") {
		t.Errorf("500 response should be logged at warn, got: %s", logged)
	}
	if !strings.Contains(logged, "status=500") {
		t.Errorf("log line missing status, got: %s", logged)
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("2xx response should be logged at info, got: %s", buf.String())
	}
}
