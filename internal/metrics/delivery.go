package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DeliveryMetrics counts per-recipient provider deliveries.
type DeliveryMetrics interface {
	// RecordDelivery counts one delivery attempt on channel ("push", "email", "sms")
	// with status "sent" or "failed".
	RecordDelivery(ctx context.Context, channel, status string)
}

type deliveryMetrics struct {
	counter metric.Int64Counter
}

// NewDeliveryMetrics creates <namespace>_deliveries_total on the provider's meter.
func NewDeliveryMetrics(p *Provider) (DeliveryMetrics, error) {
	counter, err := p.Meter().Int64Counter(
		fmt.Sprintf("%s_deliveries_total", p.Namespace()),
		metric.WithDescription("Total number of recipient deliveries by channel"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery counter: %w", err)
	}
	return &deliveryMetrics{counter: counter}, nil
}

func (d *deliveryMetrics) RecordDelivery(ctx context.Context, channel, status string) {
	d.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("status", status),
	))
}

// NoOpDeliveryMetrics discards deliveries when metrics are disabled.
type NoOpDeliveryMetrics struct{}

func (NoOpDeliveryMetrics) RecordDelivery(ctx context.Context, channel, status string) {}
