// Copyright 2025 Tarick Lorran
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability wires OpenTelemetry tracing and Prometheus metrics
// behind a single Manager. Tracing exports spans over OTLP gRPC; metrics are
// collected through the otel Prometheus exporter into a dedicated registry
// served by MetricsHandler. Both sides degrade to no-ops when disabled, so
// callers never need to check whether observability is on.
package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
)

// Manager owns the tracer provider, the meter provider and the Prometheus
// registry. Create it with NewManager, call Initialize once at startup and
// Shutdown on exit to flush pending exports.
type Manager struct {
	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	registry       *prometheus.Registry
	config         config.ObservabilityConfig
	mu             sync.RWMutex
}

// NewManager creates an uninitialized Manager. Until Initialize runs, the
// tracer is a no-op and GetMetrics returns nil (whose methods are no-ops).
func NewManager(cfg config.ObservabilityConfig) *Manager {
	return &Manager{
		tracerProvider: noop.NewTracerProvider(),
		config:         cfg,
	}
}

// NoopManager returns a Manager with everything disabled. Useful in tests
// and in commands that do not serve traffic.
func NoopManager() *Manager {
	return NewManager(config.ObservabilityConfig{})
}

// Initialize sets up the tracer provider and the metric instruments
// according to the configuration.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := initTracer(ctx, m.config)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	if m.config.MetricsEnabled {
		registry := prometheus.NewRegistry()
		provider, metrics, err := initMetrics(registry)
		if err != nil {
			return err
		}
		m.registry = registry
		m.meterProvider = provider
		m.metrics = metrics
	}

	SetGlobalMetrics(m.metrics)
	return nil
}

// GetTracer returns a tracer from the manager's provider.
func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// GetMetrics returns the metrics recorder. It is nil when metrics are
// disabled; all recorder methods tolerate a nil receiver.
func (m *Manager) GetMetrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsHandler returns the Prometheus scrape handler, or a handler that
// answers 503 when metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the tracer and meter providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		if err := spt.Shutdown(ctx); err != nil {
			return err
		}
	}
	if m.meterProvider != nil {
		return m.meterProvider.Shutdown(ctx)
	}
	return nil
}
