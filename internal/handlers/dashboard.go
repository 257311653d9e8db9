package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// @Summary      Dashboard
// @Description  Status counts, my containers, stale alerts and recent movements
// @Tags         dashboard
// @Produce      json
// @Param        location  query  string  false  "dirty_area | clean_area | truck | client"
// @Success      200  {object}  service.Summary
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dashboard [get]
// @Security     BearerAuth
func (h *Handler) dashboard(c *gin.Context) {
	actor, ok := h.identity(c)
	if !ok {
		return
	}
	sum, err := h.services.Summary(c.Request.Context(), actor.Email, c.Query("location"))
	if err != nil {
		h.respondError(c, "dashboard_failed", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type exportFunc func(*gin.Context, *bytes.Buffer, service.ContainerQuery) (int, error)

// export renders the report into memory first so a failure still yields a JSON error.
func (h *Handler) export(c *gin.Context, ext, mime string, render exportFunc) {
	q, err := containerQuery(c)
	if err != nil {
		h.respondError(c, "export_bad_query", err)
		return
	}
	var buf bytes.Buffer
	n, err := render(c, &buf, q)
	if err != nil {
		h.respondError(c, "export_failed", err, "format", ext)
		return
	}
	name := h.services.FileName(ext, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Row-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, mime, buf.Bytes())
}

// @Summary      Export CSV
// @Tags         export
// @Produce      text/csv
// @Param        status    query  string  false  "Status filter"
// @Param        location  query  string  false  "Location key"
// @Success      200
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/export.csv [get]
// @Security     BearerAuth
func (h *Handler) exportCSV(c *gin.Context) {
	h.export(c, "csv", mimeCSV, func(c *gin.Context, buf *bytes.Buffer, q service.ContainerQuery) (int, error) {
		return h.services.CSV(c.Request.Context(), buf, q)
	})
}

// @Summary      Export XLSX
// @Tags         export
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        status    query  string  false  "Status filter"
// @Param        location  query  string  false  "Location key"
// @Success      200
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/export.xlsx [get]
// @Security     BearerAuth
func (h *Handler) exportXLSX(c *gin.Context) {
	h.export(c, "xlsx", mimeXLSX, func(c *gin.Context, buf *bytes.Buffer, q service.ContainerQuery) (int, error) {
		return h.services.XLSX(c.Request.Context(), buf, q)
	})
}
