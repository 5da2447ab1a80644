package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryMetrics_RecordDelivery(t *testing.T) {
	provider, err := NewProvider("club", "dev")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	dm, err := NewDeliveryMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordDelivery(ctx, "sms", "sent")
	dm.RecordDelivery(ctx, "sms", "sent")
	dm.RecordDelivery(ctx, "email", "failed")

	output := scrape(t, provider)

	assertBizMetricLine(t, output, "club_deliveries_total", `channel="sms".*status="sent"`, "2")
	assertBizMetricLine(t, output, "club_deliveries_total", `channel="email".*status="failed"`, "1")
}

func TestNoOpDeliveryMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		NoOpDeliveryMetrics{}.RecordDelivery(context.Background(), "push", "sent")
	})
}
