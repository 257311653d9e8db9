package handlers

import (
	"net/http"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

// ScanUpdateRequest is the status update applied to a scanned container.
type ScanUpdateRequest struct {
	Status models.Status `json:"status" example:"sujo"`
	// Empty keeps the current location.
	Location string `json:"localizacao_atual,omitempty" example:"Área Suja - Doca 2"`
	// Written as sent; an empty value clears the current client.
	Client string `json:"cliente_atual,omitempty"`
	Notes  string `json:"observacoes,omitempty"`
}

type scanResponse struct {
	Container models.Container `json:"container"`
	Movement  models.Movement  `json:"movement"`
}

// @Summary      Look up scanned code
// @Tags         scan
// @Produce      json
// @Param        qr   path      string  true  "QR code"
// @Success      200  {object}  models.Container
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/scan/{qr} [get]
// @Security     BearerAuth
func (h *Handler) lookupScan(c *gin.Context) {
	qr := c.Param("qr")
	ct, err := h.services.Lookup(c.Request.Context(), qr)
	if err != nil {
		h.respondError(c, "scan_lookup_failed", err, "qr", qr)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Update scanned container
// @Description  Sets the new status, makes the caller the custodian and records a movement
// @Tags         scan
// @Accept       json
// @Produce      json
// @Param        qr    path      string             true  "QR code"
// @Param        body  body      ScanUpdateRequest  true  "Update"
// @Success      200   {object}  scanResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/scan/{qr} [post]
// @Security     BearerAuth
func (h *Handler) applyScan(c *gin.Context) {
	qr := c.Param("qr")
	var req ScanUpdateRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	actor, ok := h.identity(c)
	if !ok {
		return
	}
	ct, mv, err := h.services.Apply(c.Request.Context(), qr, service.UpdateInput{
		Status:   req.Status,
		Location: req.Location,
		Client:   req.Client,
		Notes:    req.Notes,
	}, actor)
	if err != nil {
		h.respondError(c, "scan_apply_failed", err, "qr", qr, "status", req.Status)
		return
	}
	c.JSON(http.StatusOK, scanResponse{Container: ct, Movement: mv})
}
