package handlers

import (
	"errors"
	"net/http"

	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusLoggedOut = "logged_out"
	statusCancelled = "cancel_requested"

	errInvalidBodyPref = "invalid body: "
	errInternal        = "internal error"
)

// Error kinds reported next to every error message.
const (
	kindValidation       = "validation"
	kindNotFound         = "not_found"
	kindConflict         = "conflict"
	kindCapabilityDenied = "capability_denied"
	kindPartialWrite     = "partial_write"
	kindUnauthorized     = "unauthorized"
	kindInternal         = "internal"
)

// classify maps a service error to its HTTP status and kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, capture.ErrCapabilityDenied), errors.Is(err, capture.ErrControllerClosed):
		return http.StatusServiceUnavailable, kindCapabilityDenied
	case errors.Is(err, repository.ErrPartialWrite):
		return http.StatusInternalServerError, kindPartialWrite
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoSession):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, kindValidation
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, capture.ErrSessionActive),
		errors.Is(err, capture.ErrSessionClosed):
		return http.StatusConflict, kindConflict
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized, kindUnauthorized
	}
	return http.StatusInternalServerError, kindInternal
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, kind, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err, "kind", kind}, kv...)
		if httpCode >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	c.AbortWithStatusJSON(httpCode, gin.H{"error": userMsg, "kind": kind})
}

// respondError classifies err and writes it. Internal failures hide the cause.
func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code, kind := classify(err)
	msg := err.Error()
	if kind == kindInternal {
		msg = errInternal
	}
	h.logAndJSONError(c, code, kind, msg, logKey, err, kv...)
}

func (h *Handler) badRequest(c *gin.Context, logKey string, err error) {
	h.logAndJSONError(c, http.StatusBadRequest, kindValidation, errInvalidBodyPref+err.Error(), logKey, err)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Container statuses
// @Description  Closed set of statuses with display labels and colors
// @Tags         containers
// @Produce      json
// @Success      200  {array}   models.StatusMeta
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/statuses [get]
// @Security     BearerAuth
func (h *Handler) statuses(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusCatalog())
}
