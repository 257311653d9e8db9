package handlers

import (
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.GET("/me", h.me)
		api.POST("/logout", h.logout)
		api.GET("/statuses", h.statuses)

		h.registerContainerRoutes(api)
		h.registerScanRoutes(api)

		api.GET("/movements", h.recentMovements)
		api.GET("/dashboard", h.dashboard)
		api.GET("/export.csv", h.exportCSV)
		api.GET("/export.xlsx", h.exportXLSX)

		h.registerCaptureRoutes(api)
	}
}

func (h *Handler) registerContainerRoutes(api *gin.RouterGroup) {
	containers := api.Group("/containers")
	{
		containers.GET("", h.listContainers)
		containers.POST("", h.createContainer)
		containers.GET("/:id", h.getContainer)
		containers.GET("/:id/history", h.containerHistory)
		containers.GET("/:id/label.png", h.containerLabel)
	}
	api.GET("/transport", h.inTransit)
}

func (h *Handler) registerScanRoutes(api *gin.RouterGroup) {
	scan := api.Group("/scan")
	{
		scan.GET("/:qr", h.lookupScan)
		// Body example: {"status":"sujo","location":"Área Suja - Doca 2"}
		scan.POST("/:qr", h.applyScan)
	}
}

func (h *Handler) registerCaptureRoutes(api *gin.RouterGroup) {
	capture := api.Group("/capture")
	{
		capture.POST("/sessions", h.openCapture)
		capture.GET("/sessions/current", h.currentCapture)
		capture.GET("/sessions/current/result", h.awaitCapture)
		capture.POST("/sessions/current/cancel", h.cancelCapture)
		capture.POST("/sessions/current/manual", h.manualCapture)
		// Browser camera: binary frames in, state envelopes out.
		capture.GET("/ws", h.captureStream)
	}
}
