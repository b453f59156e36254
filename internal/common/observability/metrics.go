// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider     *metric.MeterProvider
	meter             otelmetric.Meter
	executionCounter  otelmetric.Int64Counter
	executionDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	executionCounter, _ := meter.Int64Counter(
		"executions.processed",
		otelmetric.WithDescription("Number of template executions processed"),
	)

	executionDuration, _ := meter.Float64Histogram(
		"executions.duration",
		otelmetric.WithDescription("Template execution duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:     provider,
		meter:             meter,
		executionCounter:  executionCounter,
		executionDuration: executionDuration,
	}
}

func (o *Observability) RecordExecution(ctx context.Context, triggerType, status string) {
	if o.executionCounter != nil {
		o.executionCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("trigger_type", triggerType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordExecutionDuration(ctx context.Context, duration time.Duration, triggerType string) {
	if o.executionDuration != nil {
		o.executionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("trigger_type", triggerType),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
