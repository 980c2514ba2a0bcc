package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
)

func TestNilMetricsAreSafe(t *testing.T) {
	ctx := context.Background()
	var m *Metrics

	m.RecordHTTPRequest(ctx, "GET", "/health", 200, 5*time.Millisecond)
	m.RecordJob(ctx, "completed", time.Second)
	m.RecordLLMCall(ctx, "gemini-2.5-flash", nil)
	m.RecordLLMCall(ctx, "gemini-2.5-flash", errors.New("boom"))
	m.RecordToolCall(ctx, "consultaSaldo", true)
}

func TestGlobalMetrics(t *testing.T) {
	SetGlobalMetrics(nil)
	assert.Nil(t, GetGlobalMetrics())

	m := &Metrics{}
	SetGlobalMetrics(m)
	assert.Same(t, m, GetGlobalMetrics())

	SetGlobalMetrics(nil)
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()

	tracer := m.GetTracer("test")
	_, span := tracer.Start(context.Background(), "test_span")
	span.End()

	assert.Nil(t, m.GetMetrics())

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestInitializeDisabled(t *testing.T) {
	m := NewManager(config.ObservabilityConfig{})
	require.NoError(t, m.Initialize(context.Background()))

	assert.Nil(t, m.GetMetrics())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestInitializeMetricsAndScrape(t *testing.T) {
	ctx := context.Background()
	m := NewManager(config.ObservabilityConfig{MetricsEnabled: true})
	require.NoError(t, m.Initialize(ctx))
	defer func() {
		SetGlobalMetrics(nil)
		_ = m.Shutdown(ctx)
	}()

	metrics := m.GetMetrics()
	require.NotNil(t, metrics)
	assert.Same(t, metrics, GetGlobalMetrics())

	metrics.RecordHTTPRequest(ctx, "POST", "/api/v1/ask", 202, 12*time.Millisecond)
	metrics.RecordJob(ctx, "completed", 3*time.Second)
	metrics.RecordJob(ctx, "failed", time.Second)
	metrics.RecordLLMCall(ctx, "gemini-2.5-flash", nil)
	metrics.RecordToolCall(ctx, "consultaSaldo", false)

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "agenttcc_requests_total")
	assert.Contains(t, out, "agenttcc_request_duration_seconds")
	assert.Contains(t, out, "agenttcc_jobs_total")
	assert.Contains(t, out, "agenttcc_job_duration_seconds")
	assert.Contains(t, out, "agenttcc_llm_calls_total")
	assert.Contains(t, out, "agenttcc_tool_calls_total")
	assert.Contains(t, out, `status="failed"`)
	assert.Contains(t, out, `tool="consultaSaldo"`)
}

func TestHTTPMiddlewareRecords(t *testing.T) {
	ctx := context.Background()
	m := NewManager(config.ObservabilityConfig{MetricsEnabled: true})
	require.NoError(t, m.Initialize(ctx))
	defer func() {
		SetGlobalMetrics(nil)
		_ = m.Shutdown(ctx)
	}()

	handler := HTTPMiddleware(m.GetTracer("test"), m.GetMetrics())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("ok"))
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ask", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	scrape := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `path="/api/v1/ask"`)
}

func TestHTTPMiddlewareNilSides(t *testing.T) {
	handler := HTTPMiddleware(nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseWriterWritesHeaderOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusInternalServerError)
	n, err := w.Write([]byte("body"))

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusTeapot, w.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 4, w.bytesWritten)
}
