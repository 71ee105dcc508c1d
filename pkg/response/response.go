package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chapterhub/backend/internal/domain"
)

// Body is the standard API response envelope.
type Body struct {
	Success            bool        `json:"success"`
	Data               interface{} `json:"data,omitempty"`
	Error              string      `json:"error,omitempty"`
	RequiredPermission string      `json:"required_permission,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// ForbiddenPermission sends 403 naming the permission the actor lacks, so
// clients can render an actionable message.
func ForbiddenPermission(c *gin.Context, permission string) {
	c.JSON(http.StatusForbidden, Body{
		Success:            false,
		Error:              "insufficient permissions",
		RequiredPermission: permission,
	})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// UnprocessableEntity sends 422.
func UnprocessableEntity(c *gin.Context, err string) {
	c.JSON(http.StatusUnprocessableEntity, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// FromError maps a domain error to its HTTP rejection. Unrecognized errors
// become 500 with the fallback message; the cause is never leaked.
func FromError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		if p := domain.RequiredPermission(err); p != "" {
			ForbiddenPermission(c, p)
			return
		}
		Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		UnprocessableEntity(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		Conflict(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, domain.ErrValidation):
		BadRequest(c, err.Error())
	default:
		Internal(c, fallback)
	}
}
