package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics *Metrics
	metricsMu     sync.RWMutex
)

// Metrics records service-level measurements. A nil receiver is valid and
// records nothing, so callers can hold a *Metrics unconditionally.
type Metrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	jobsTotal       metric.Int64Counter
	jobDuration     metric.Float64Histogram
	llmCallsTotal   metric.Int64Counter
	toolCallsTotal  metric.Int64Counter
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.requestsTotal == nil || m.requestDuration == nil {
		return
	}

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", strconv.Itoa(statusCode)),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
}

// RecordJob records one processed queue job with its terminal status.
func (m *Metrics) RecordJob(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.jobsTotal == nil || m.jobDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	m.jobsTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLLMCall counts one generation call against the given model.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, err error) {
	if m == nil || m.llmCallsTotal == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmCallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	))
}

// RecordToolCall counts one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, success bool) {
	if m == nil || m.toolCallsTotal == nil {
		return
	}

	status := "ok"
	if !success {
		status = "error"
	}
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// SetGlobalMetrics installs the process-wide recorder used by packages that
// are not handed a Manager.
func SetGlobalMetrics(m *Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, possibly nil.
func GetGlobalMetrics() *Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
