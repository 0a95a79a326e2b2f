// Package router provides aegis service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/aegis/handler"
)

// Register registers all aegis service routes.
func Register(engine *gin.Engine, health *handler.HealthHandler, analysis *handler.AnalysisHandler, rag *handler.RAGHandler) error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := handler.RegisterValidations(v); err != nil {
			return err
		}
	}

	engine.GET("/healthz", health.Healthz)

	v1 := engine.Group("/v1")
	{
		v1.GET("/stats", health.Stats)

		analysisGroup := v1.Group("/analysis")
		{
			analysisGroup.POST("", analysis.Analyze)
			analysisGroup.POST("/batch", analysis.AnalyzeBatch)
			analysisGroup.GET("/history", analysis.History)
			analysisGroup.DELETE("/history", analysis.ClearHistory)
		}

		ragGroup := v1.Group("/rag")
		{
			ragGroup.POST("/documents", rag.Index)
			ragGroup.DELETE("/documents", rag.Reset)
			ragGroup.POST("/query", rag.Query)
			ragGroup.GET("/stats", rag.Stats)
		}
	}

	logger.Info("HTTP routes registered")
	return nil
}
