package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// initMetrics builds the meter provider on top of the given registry and
// creates every instrument the service records. Instrument names already
// carry the _total suffix, so the counter suffix the exporter would add is
// turned off.
func initMetrics(registry *prometheus.Registry) (*sdkmetric.MeterProvider, *Metrics, error) {
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutCounterSuffixes(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	meter := provider.Meter("agenttcc")

	requestsTotal, err := meter.Int64Counter(
		"agenttcc_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"agenttcc_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	jobsTotal, err := meter.Int64Counter(
		"agenttcc_jobs_total",
		metric.WithDescription("Total queue jobs processed"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create jobs counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram(
		"agenttcc_job_duration_seconds",
		metric.WithDescription("Queue job duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create job duration histogram: %w", err)
	}

	llmCallsTotal, err := meter.Int64Counter(
		"agenttcc_llm_calls_total",
		metric.WithDescription("Total LLM generation calls"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm calls counter: %w", err)
	}

	toolCallsTotal, err := meter.Int64Counter(
		"agenttcc_tool_calls_total",
		metric.WithDescription("Total tool executions"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	return provider, &Metrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		llmCallsTotal:   llmCallsTotal,
		toolCallsTotal:  toolCallsTotal,
	}, nil
}
