package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

// Envelope is the response contract for every endpoint. Exactly one of
// Data or Error is set; Pagination and Meta ride along when relevant.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func write(c *gin.Context, status int, env Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, env)
}

// JSON sends a success envelope with optional pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	env := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		env.Meta = meta[0]
	}
	write(c, status, env)
}

// Created responds with HTTP 201.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error normalises err into the envelope's error shape and picks the
// HTTP status from it.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr})
}

// NoContent responds with HTTP 204 and an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
