package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/response"
)

// DirectOrderHandler wires HTTP endpoints to the direct-order service.
type DirectOrderHandler struct {
	service *service.DirectOrderService
}

// NewDirectOrderHandler creates a new handler.
func NewDirectOrderHandler(svc *service.DirectOrderService) *DirectOrderHandler {
	return &DirectOrderHandler{service: svc}
}

// Create godoc
// @Summary Create direct order
// @Description Create a workshop-issued inspection order in one shot
// @Tags DirectOrders
// @Accept json
// @Produce json
// @Param payload body service.CreateDirectOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /direct-orders [post]
func (h *DirectOrderHandler) Create(c *gin.Context) {
	var req service.CreateDirectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List direct orders
// @Tags DirectOrders
// @Produce json
// @Param plate query string false "Plate substring"
// @Param pending query bool false "Only unreviewed orders"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /direct-orders [get]
func (h *DirectOrderHandler) List(c *gin.Context) {
	req := service.ListDirectOrdersRequest{
		Plate:       c.Query("plate"),
		OnlyPending: c.Query("pending") == "true",
		Limit:       intQuery(c, "limit", 50),
		Offset:      intQuery(c, "offset", 0),
	}
	var err error
	if req.DateFrom, err = timeQuery(c, "date_from"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_from"))
		return
	}
	if req.DateTo, err = timeQuery(c, "date_to"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_to"))
		return
	}

	records, pagination, err := h.service.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get direct order
// @Tags DirectOrders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /direct-orders/{id} [get]
func (h *DirectOrderHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkReviewed godoc
// @Summary Mark direct order reviewed
// @Description Transition a pending order to reviewed; the note is stored as-is
// @Tags DirectOrders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body map[string]string true "Review note"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /direct-orders/{id}/review [patch]
func (h *DirectOrderHandler) MarkReviewed(c *gin.Context) {
	var payload struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	record, err := h.service.MarkReviewed(c.Request.Context(), c.Param("id"), payload.Note, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
