package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/response"
)

// HistoryHandler serves the reconciled history view and its exports.
type HistoryHandler struct {
	history *service.HistoryService
	exports *service.ExportService
}

// NewHistoryHandler creates a new handler.
func NewHistoryHandler(history *service.HistoryService, exports *service.ExportService) *HistoryHandler {
	return &HistoryHandler{history: history, exports: exports}
}

// List godoc
// @Summary Reconciled history
// @Description Merged, filtered, sorted and paginated view over both record kinds
// @Tags History
// @Produce json
// @Param plate query string false "Plate substring"
// @Param conductor query string false "Conductor substring"
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound, inclusive through end of day"
// @Param page query int false "1-indexed page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.HistoryFilter{
		Plate:     c.Query("plate"),
		Conductor: c.Query("conductor"),
	}
	var err error
	if filter.DateFrom, err = timeQuery(c, "date_from"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_from"))
		return
	}
	if filter.DateTo, err = timeQuery(c, "date_to"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_to"))
		return
	}
	page := models.HistoryPage{
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", service.DefaultHistoryPageSize),
	}

	items, pagination, err := h.history.Reconcile(c.Request.Context(), claims.CompanyID, filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// CreateExport godoc
// @Summary Request history export
// @Description Enqueue a CSV or PDF export of the reconciled history
// @Tags History
// @Accept json
// @Produce json
// @Param payload body map[string]interface{} true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /history/export [post]
func (h *HistoryHandler) CreateExport(c *gin.Context) {
	var payload struct {
		Format models.ExportFormat  `json:"format"`
		Filter models.HistoryFilter `json:"filter"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.exports.Enqueue(c.Request.Context(), payload.Format, payload.Filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// ExportStatus godoc
// @Summary Export job status
// @Tags History
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /history/export/jobs/{id} [get]
func (h *HistoryHandler) ExportStatus(c *gin.Context) {
	job, err := h.exports.Status(c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadExport godoc
// @Summary Download export artifact
// @Description Serve a finished export through its signed token
// @Tags History
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /history/export/{token} [get]
func (h *HistoryHandler) DownloadExport(c *gin.Context) {
	file, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file not found"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, map[string]string{
		"Content-Disposition": `attachment; filename="` + info.Name() + `"`,
	})
}
