package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/middleware"
	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// claimsFromContext returns the authenticated claims, or nil when the
// request skipped the auth middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.JWTClaims)
	return claims
}
