package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// operationBuckets span a webhook update up to a send held open for the
// longest dispatch deadline.
var operationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

// BusinessMetrics records use case invocations.
type BusinessMetrics interface {
	// RecordOperation counts one invocation of operation ("communication_send",
	// "recipient_resend", "communication_schedule", "scheduled_process") with
	// status "success", "failed" or "error", and observes its duration.
	RecordOperation(ctx context.Context, operation, status string, duration time.Duration)
}

type businessMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewBusinessMetrics creates <namespace>_operations_total and
// <namespace>_operation_duration_seconds on the provider's meter.
func NewBusinessMetrics(p *Provider) (BusinessMetrics, error) {
	meter := p.Meter()

	operations, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", p.Namespace()),
		metric.WithDescription("Total number of communication operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", p.Namespace()),
		metric.WithDescription("Duration of communication operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(operationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{operations: operations, duration: duration}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	b.operations.Add(ctx, 1, attrs)
	b.duration.Record(ctx, duration.Seconds(), attrs)
}

// NoOpBusinessMetrics discards operations when metrics are disabled.
type NoOpBusinessMetrics struct{}

func (NoOpBusinessMetrics) RecordOperation(context.Context, string, string, time.Duration) {}
