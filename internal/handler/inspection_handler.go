package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/response"
)

// InspectionHandler wires HTTP endpoints to the inspection service.
type InspectionHandler struct {
	service *service.InspectionService
}

// NewInspectionHandler creates a new handler.
func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{service: svc}
}

// Create godoc
// @Summary Create inspection
// @Description Atomically create one inspection record, without images
// @Tags Inspections
// @Accept json
// @Produce json
// @Param payload body service.CreateInspectionRequest true "Inspection payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections [post]
func (h *InspectionHandler) Create(c *gin.Context) {
	var req service.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid inspection payload"))
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
// @Summary List inspections
// @Description Paged, filtered inspection list consumed in bulk for reconciliation
// @Tags Inspections
// @Produce json
// @Param plate query string false "Plate substring"
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections [get]
func (h *InspectionHandler) List(c *gin.Context) {
	req := service.ListInspectionsRequest{
		Plate:  c.Query("plate"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
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
// @Summary Get inspection
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections/{id} [get]
func (h *InspectionHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// UploadImage godoc
// @Summary Attach component image
// @Description Attach one photo to one component of an existing inspection
// @Tags Inspections
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Inspection ID"
// @Param kind formData string true "Component kind"
// @Param image formData file true "Image file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections/{id}/images [post]
func (h *InspectionHandler) UploadImage(c *gin.Context) {
	kind := models.ComponentKind(c.PostForm("kind"))

	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read image file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read image file"))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if err := h.service.AttachImage(c.Request.Context(), c.Param("id"), kind, fileHeader.Filename, mimeType, data); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"status": "attached"}, nil)
}

// DownloadImage godoc
// @Summary Download component image
// @Description Serve a component image through a signed token
// @Tags Inspections
// @Produce octet-stream
// @Param token path string true "Signed image token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /inspections/images/{token} [get]
func (h *InspectionHandler) DownloadImage(c *gin.Context) {
	file, err := h.service.OpenImage(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "image not found"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

// Pending godoc
// @Summary List pending issues
// @Description Inspections with reported problems, company scoped
// @Tags Inspections
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections/pending [get]
func (h *InspectionHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.ListInspectionsRequest{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	records, pagination, err := h.service.ListPendingIssues(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// MarkReviewed godoc
// @Summary Mark inspection reviewed
// @Description Transition a pending inspection to reviewed with a note
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body map[string]string true "Review note"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /inspections/{id}/review [post]
func (h *InspectionHandler) MarkReviewed(c *gin.Context) {
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

// CheckNeeded godoc
// @Summary Check whether caller must inspect
// @Description Answers whether the worker must inspect now, plus pending manual requests
// @Tags Inspections
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /check-needed [get]
func (h *InspectionHandler) CheckNeeded(c *gin.Context) {
	result, err := h.service.CheckNeeded(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
