package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyHeader is the request header carrying the shared secret.
const APIKeyHeader = "X-API-Key"

// APIKey creates a Gin middleware enforcing the shared API key. An empty
// configured key disables authentication entirely; that insecure fallback
// is deliberate for local use and is warned about on every request.
func APIKey(key string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			logger.Warn("API key not configured - authentication disabled")
			c.Next()
			return
		}

		if c.GetHeader(APIKeyHeader) != key {
			logger.Warn("Invalid API key", zap.String("client", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
