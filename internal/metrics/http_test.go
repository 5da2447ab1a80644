package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("club", "dev")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider))
	router.POST("/v1/communications/:id/schedule", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.POST("/v1/communications/send", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	})

	serve := func(method, path string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(http.MethodPost, "/v1/communications/5f1c/schedule"))
	assert.Equal(t, http.StatusNoContent, serve(http.MethodPost, "/v1/communications/9a2e/schedule"))
	assert.Equal(t, http.StatusInternalServerError, serve(http.MethodPost, "/v1/communications/send"))
	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/nope"))

	output := scrape(t, provider)

	t.Run("RoutePatternLabel", func(t *testing.T) {
		assertBizMetricLine(t, output, "club_http_requests_total",
			`method="POST".*path="/v1/communications/:id/schedule".*status_code="204"`, "2")
		assert.NotContains(t, output, "5f1c")
	})

	t.Run("ServerError", func(t *testing.T) {
		assertBizMetricLine(t, output, "club_http_requests_total",
			`path="/v1/communications/send".*status_code="500"`, "1")
	})

	t.Run("UnmatchedRoute", func(t *testing.T) {
		assertBizMetricLine(t, output, "club_http_requests_total",
			`path="unknown".*status_code="404"`, "1")
	})

	t.Run("InFlightReturnsToZero", func(t *testing.T) {
		assertBizMetricLine(t, output, "club_http_requests_in_flight",
			`path="/v1/communications/:id/schedule"`, "0")
	})

	t.Run("Duration", func(t *testing.T) {
		assertBizMetricLine(t, output, "club_http_request_duration_seconds_count",
			`path="/v1/communications/send"`, "1")
	})
}
