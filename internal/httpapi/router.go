// Package httpapi exposes the extraction core over HTTP for batch
// re-processing (SPEC_FULL.md §A.4): one endpoint runs the full pipeline
// over a batch of OCR token pages and returns the merged documents.
package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/labreport-extract/internal/config"
	"github.com/yourorg/labreport-extract/internal/fallback"
	"github.com/yourorg/labreport-extract/internal/httpapi/handlers"
	"github.com/yourorg/labreport-extract/internal/httpapi/middleware"
	"github.com/yourorg/labreport-extract/internal/pipeline"
)

// SetupRouter builds the gin engine: middleware stack, health/metrics
// endpoints, and the versioned extraction API.
func SetupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", middleware.Handler())

	capabilities, enabled := fallback.New(cfg)
	opts := pipeline.OptionsFromConfig(cfg)
	extractorOpts := []pipeline.Option{
		pipeline.WithOptions(opts),
		pipeline.WithLogger(slog.Default()),
	}
	if enabled {
		extractorOpts = append(extractorOpts,
			pipeline.WithHeaderFallback(capabilities.Header),
			pipeline.WithPatientFallback(capabilities.Patient),
		)
		slog.Info("llm fallback wired into batch extraction service")
	}
	extractor := pipeline.New(extractorOpts...)
	extractHandler := handlers.NewExtractHandler(extractor)

	v1 := router.Group("/v1")
	{
		v1.POST("/extract", extractHandler.Extract)
	}

	return router
}
