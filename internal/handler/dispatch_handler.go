package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/response"
)

// DispatchHandler wires the manual-request batch endpoint.
type DispatchHandler struct {
	service *service.DispatchService
}

// NewDispatchHandler creates a new handler.
func NewDispatchHandler(svc *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{service: svc}
}

// Dispatch godoc
// @Summary Dispatch manual inspection requests
// @Description Broadcast or targeted reminders; the server skips workers with an active request
// @Tags ManualRequests
// @Accept json
// @Produce json
// @Param payload body service.DispatchRequest true "Dispatch payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /manual-requests [post]
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dispatch payload"))
		return
	}

	result, err := h.service.Dispatch(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
