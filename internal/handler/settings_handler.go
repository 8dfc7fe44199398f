package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/response"
)

// SettingsHandler wires the auto-inspection settings endpoints.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler creates a new handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// Get godoc
// @Summary Read auto-inspection settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/auto-inspection [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	settings, err := h.service.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Toggle auto-inspection settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body map[string]bool true "Enabled flag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/auto-inspection [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "enabled flag required"))
		return
	}

	settings, err := h.service.Update(c.Request.Context(), *payload.Enabled, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
