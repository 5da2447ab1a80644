package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMiddleware records <namespace>_http_requests_total,
// <namespace>_http_request_duration_seconds and
// <namespace>_http_requests_in_flight. Paths are reported as route patterns
// (/v1/communications/:id/schedule), unmatched routes as "unknown".
// Instrument creation failures leave the router uninstrumented.
func HTTPMetricsMiddleware(p *Provider) gin.HandlerFunc {
	meter := p.Meter()
	ns := p.Namespace()

	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", ns),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return passthrough
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", ns),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(operationBuckets...),
	)
	if err != nil {
		return passthrough
	}

	inFlight, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_http_requests_in_flight", ns),
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return passthrough
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		ctx := c.Request.Context()

		route := metric.WithAttributes(attribute.String("path", path))
		inFlight.Add(ctx, 1, route)
		defer inFlight.Add(ctx, -1, route)

		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		requests.Add(ctx, 1, attrs)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func passthrough(c *gin.Context) {
	c.Next()
}
