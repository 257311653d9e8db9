package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultAwait = 5 * time.Second
	maxAwait     = 30 * time.Second
)

// OpenCaptureRequest selects the camera for a new session.
type OpenCaptureRequest struct {
	// push (browser camera over /capture/ws) or device (server camera)
	Source string `json:"source,omitempty" example:"push"`
}

// ManualEntryRequest carries a code typed by the user.
type ManualEntryRequest struct {
	Payload string `json:"payload" binding:"required" example:"BOM-1718000000000-ab12cd34e"`
}

func (h *Handler) source(c *gin.Context) (service.Source, bool) {
	src, err := service.ParseSource(c.Query("source"))
	if err != nil {
		h.respondError(c, "capture_bad_source", err)
		return "", false
	}
	return src, true
}

// @Summary      Open capture session
// @Description  At most one session per camera; manual_only is set when no decoder is available
// @Tags         capture
// @Accept       json
// @Produce      json
// @Param        body  body      OpenCaptureRequest  false  "Source"
// @Success      201   {object}  service.SessionView
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/capture/sessions [post]
// @Security     BearerAuth
func (h *Handler) openCapture(c *gin.Context) {
	var req OpenCaptureRequest
	if c.Request.ContentLength != 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	src, err := service.ParseSource(req.Source)
	if err != nil {
		h.respondError(c, "capture_bad_source", err)
		return
	}
	uid := userID(c)
	v, err := h.services.Open(c.Request.Context(), uid, src)
	if err != nil {
		h.respondError(c, "capture_open_failed", err, "user_id", uid, "source", src)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// @Summary      Current capture session
// @Tags         capture
// @Produce      json
// @Param        source  query  string  false  "push | device"
// @Success      200  {object}  service.SessionView
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/capture/sessions/current [get]
// @Security     BearerAuth
func (h *Handler) currentCapture(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	v, ok := h.services.Current(userID(c), src)
	if !ok {
		h.respondError(c, "capture_current_missing", service.ErrNoSession)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary      Await capture outcome
// @Description  Waits for the latest session to end. 202 with the live session when it is still running.
// @Tags         capture
// @Produce      json
// @Param        source  query  string  false  "push | device"
// @Param        wait    query  string  false  "Max wait, e.g. 5s (up to 30s)"
// @Success      200  {object}  service.ScanResult
// @Success      202  {object}  service.SessionView
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/capture/sessions/current/result [get]
// @Security     BearerAuth
func (h *Handler) awaitCapture(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	wait := defaultAwait
	if s := c.Query("wait"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d >= 0 && d <= maxAwait {
			wait = d
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	uid := userID(c)
	res, err := h.services.Await(ctx, uid, src)
	if errors.Is(err, context.DeadlineExceeded) {
		if v, live := h.services.Current(uid, src); live {
			c.JSON(http.StatusAccepted, v)
			return
		}
	}
	if err != nil {
		h.respondError(c, "capture_await_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Cancel capture session
// @Description  Honored at the next sampling tick
// @Tags         capture
// @Produce      json
// @Param        source  query  string  false  "push | device"
// @Success      202  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/capture/sessions/current/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelCapture(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	if err := h.services.Cancel(userID(c), src); err != nil {
		h.respondError(c, "capture_cancel_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusCancelled})
}

// @Summary      Manual entry
// @Description  Ends the live session with the typed code, or resolves it directly when none is open
// @Tags         capture
// @Accept       json
// @Produce      json
// @Param        source  query  string              false  "push | device"
// @Param        body    body   ManualEntryRequest  true   "Code"
// @Success      200  {object}  service.ScanResult
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/capture/sessions/current/manual [post]
// @Security     BearerAuth
func (h *Handler) manualCapture(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	var req ManualEntryRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	res, err := h.services.Submit(c.Request.Context(), userID(c), src, req.Payload)
	if err != nil {
		h.respondError(c, "capture_manual_failed", err, "payload", req.Payload)
		return
	}
	c.JSON(http.StatusOK, res)
}
