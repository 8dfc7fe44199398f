package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// CompanyHeader is the tenant selector for multi-company administrators.
// Its value is an opaque pass-through; nothing here computes or checks
// company identifiers beyond substituting it into the claims.
const CompanyHeader = "X-Company-ID"

// Tenant lets administrators act on another company's data by sending
// the selector header. Non-admin callers keep the company baked into
// their token.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if override := c.GetHeader(CompanyHeader); override != "" && claims.Role == models.RoleAdmin {
			scoped := *claims
			scoped.CompanyID = override
			c.Set(ContextUserKey, &scoped)
		}
		c.Next()
	}
}
