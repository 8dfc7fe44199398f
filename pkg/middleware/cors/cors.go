package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID, X-Company-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	maxAge       = "600"
)

// New builds a CORS middleware over an allow-list of origins. An empty
// list allows every origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[normalizeOrigin(o)] = true
	}
	allowAll := len(allowed) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")

		switch {
		case origin != "" && (allowAll || allowed[normalizeOrigin(origin)]):
			h.Set("Access-Control-Allow-Origin", origin)
		case origin == "" && allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(origin, "/")
}
