package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjaradhye/burnbox/internal/monitoring"
)

// HTTPMetrics 记录每个请求的 Prometheus 指标。
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
			time.Since(start),
		)

		if status >= 500 {
			metrics.RecordError("http_error", "http")
		}
		if status == 429 {
			metrics.RecordRateLimitBlock("http")
		}
	}
}
