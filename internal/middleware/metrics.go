package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
)

// Metrics counts every handled request by method, registered route and
// status. Unmatched paths share one label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
