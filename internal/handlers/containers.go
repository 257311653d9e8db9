package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxListLimit     = 1000
	defaultLabelSize = 256
)

// CreateContainerRequest is the payload for registering a container.
type CreateContainerRequest struct {
	// Leave empty to have a code generated.
	QRCode               string        `json:"codigo_qr,omitempty" example:"BOM-1718000000000-ab12cd34e"`
	IdentificationNumber string        `json:"numero_identificacao" binding:"required" example:"BMB-0042"`
	Status               models.Status `json:"status,omitempty" example:"limpo"`
	Location             string        `json:"localizacao_atual,omitempty" example:"Área Limpa - Estoque"`
	Custodian            string        `json:"responsavel_atual,omitempty"`
	Client               string        `json:"cliente_atual,omitempty"`
	// Liters
	Capacity float64 `json:"capacidade,omitempty" example:"200"`
	Notes    string  `json:"observacoes,omitempty"`
}

// containerQuery reads the list filters shared by listing and export.
func containerQuery(c *gin.Context) (service.ContainerQuery, error) {
	q := service.ContainerQuery{
		Search:   c.Query("search"),
		Status:   models.Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Location: c.Query("location"),
		OrderBy:  repository.Ordering(c.Query("order")),
	}
	if custodian, ok := c.GetQuery("custodian"); ok {
		q.Custodian = &custodian
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return q, err
	}
	q.Limit = limit
	return q, nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxListLimit {
		return 0, fmt.Errorf("%w: limit must be between 0 and %d", service.ErrValidation, maxListLimit)
	}
	return n, nil
}

// @Summary      List containers
// @Tags         containers
// @Produce      json
// @Param        search     query  string  false  "Substring of identification number or QR code"
// @Param        status     query  string  false  "limpo | sujo | em_transito | com_cliente | manutencao"
// @Param        location   query  string  false  "dirty_area | clean_area | truck | client"
// @Param        custodian  query  string  false  "Custodian email; empty selects unassigned"
// @Param        order      query  string  false  "-data_ultima_atualizacao | -created_date"
// @Param        limit      query  int     false  "Maximum rows"
// @Success      200  {array}   models.Container
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/containers [get]
// @Security     BearerAuth
func (h *Handler) listContainers(c *gin.Context) {
	q, err := containerQuery(c)
	if err != nil {
		h.respondError(c, "containers_bad_query", err)
		return
	}
	list, err := h.services.Containers.List(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, "containers_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Register container
// @Description  Issues a QR code when none is given and records the initial movement
// @Tags         containers
// @Accept       json
// @Produce      json
// @Param        body  body      CreateContainerRequest  true  "Container"
// @Success      201   {object}  models.Container
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/containers [post]
// @Security     BearerAuth
func (h *Handler) createContainer(c *gin.Context) {
	var req CreateContainerRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	actor, ok := h.identity(c)
	if !ok {
		return
	}
	created, err := h.services.Containers.Create(c.Request.Context(), service.CreateContainerInput{
		QRCode:               req.QRCode,
		IdentificationNumber: req.IdentificationNumber,
		Status:               req.Status,
		Location:             req.Location,
		Custodian:            req.Custodian,
		Client:               req.Client,
		Capacity:             req.Capacity,
		Notes:                req.Notes,
	}, actor)
	if err != nil {
		h.respondError(c, "container_create_failed", err, "identification", req.IdentificationNumber)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary      Get container
// @Tags         containers
// @Produce      json
// @Param        id   path      string  true  "Container ID"
// @Success      200  {object}  models.Container
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/containers/{id} [get]
// @Security     BearerAuth
func (h *Handler) getContainer(c *gin.Context) {
	id := c.Param("id")
	ct, err := h.services.Containers.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "container_get_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Container history
// @Description  Movements of one container, newest first
// @Tags         containers
// @Produce      json
// @Param        id   path      string  true  "Container ID"
// @Success      200  {array}   models.Movement
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/containers/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) containerHistory(c *gin.Context) {
	id := c.Param("id")
	list, err := h.services.History(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "container_history_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Container QR label
// @Tags         containers
// @Produce      png
// @Param        id    path   string  true   "Container ID"
// @Param        size  query  int     false  "Edge in pixels (default 256)"
// @Success      200
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/containers/{id}/label.png [get]
// @Security     BearerAuth
func (h *Handler) containerLabel(c *gin.Context) {
	id := c.Param("id")
	size := defaultLabelSize
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.respondError(c, "container_label_bad_size", fmt.Errorf("%w: size %q", service.ErrValidation, s))
			return
		}
		size = n
	}
	png, err := h.services.LabelPNG(c.Request.Context(), id, size)
	if err != nil {
		h.respondError(c, "container_label_failed", err, "id", id)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// @Summary      Containers in transit with me
// @Tags         containers
// @Produce      json
// @Success      200  {array}   models.Container
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/transport [get]
// @Security     BearerAuth
func (h *Handler) inTransit(c *gin.Context) {
	actor, ok := h.identity(c)
	if !ok {
		return
	}
	list, err := h.services.InTransit(c.Request.Context(), actor.Email)
	if err != nil {
		h.respondError(c, "transport_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Recent movements
// @Tags         movements
// @Produce      json
// @Param        limit  query  int  false  "Maximum rows (default 10)"
// @Success      200  {array}   models.Movement
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/movements [get]
// @Security     BearerAuth
func (h *Handler) recentMovements(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		h.respondError(c, "movements_bad_query", err)
		return
	}
	list, err := h.services.RecentMovements(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, "movements_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
