package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware tags every request with an ID. A caller-supplied X-Request-ID
// is trusted so upstream proxies can correlate; otherwise a UUID is minted.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(headerKey, id)
		c.Next()
	}
}

// Value returns the request ID for the current request, or "".
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
