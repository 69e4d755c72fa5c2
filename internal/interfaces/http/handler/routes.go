package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crm/docrender/internal/interfaces/http/router"
)

// PrintRoutes creates the route group for print endpoints. generateLimit
// applies to generate only; pass nil to disable it.
func PrintRoutes(handler *PrintHandler, authMiddleware, generateLimit gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("print", "/print")
	group.Use(authMiddleware)

	group.POST("/preview", handler.PreviewDocument)
	if generateLimit != nil {
		group.POST("/generate", generateLimit, handler.GeneratePDF)
	} else {
		group.POST("/generate", handler.GeneratePDF)
	}

	group.GET("/jobs", handler.ListJobs)
	group.GET("/jobs/:id", handler.GetJob)
	group.GET("/jobs/:id/download", handler.DownloadPDF)

	return group
}

// DocumentRoutes creates the route group for CRM document endpoints
func DocumentRoutes(handler *PrintHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("documents", "/documents")
	group.Use(authMiddleware)

	group.POST("/:kind/:id/notes", handler.AddNote)

	return group
}

// SystemRoutes creates the unauthenticated root group with /health and,
// when metrics is non-nil, /metrics.
func SystemRoutes(health *HealthHandler, metrics http.Handler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "")

	group.GET("/health", health.Health)
	if metrics != nil {
		group.GET("/metrics", gin.WrapH(metrics))
	}

	return group
}
