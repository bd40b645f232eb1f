package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/metrics"
	awspkg "github.com/yousufaayman/barcode-manage-cpc-sub000/pkg/aws"
)

// Metrics counts every request in Prometheus and, when CloudWatch metrics
// are enabled, pushes request count and latency there as well.
func Metrics(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		statusRange := statusCodeToRange(c.Writer.Status())
		metrics.HTTPRequest(c.Request.Method, route, statusRange)

		if metricsClient == nil || !metricsClient.IsEnabled() {
			return
		}

		duration := time.Since(start)
		dimensions := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Route":   route,
			"Status":  statusRange,
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTPRequests, dimensions)
			_ = metricsClient.RecordLatency(ctx, awspkg.MetricHTTPLatency, duration, dimensions)
			switch statusRange {
			case "4xx":
				_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTP4xx, dimensions)
			case "5xx":
				_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTP5xx, dimensions)
			}
		}()
	}
}

func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
