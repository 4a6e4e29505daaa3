package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/advieskamer/advies-backend/internal/http/handlers"
	httpMW "github.com/advieskamer/advies-backend/internal/http/middleware"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ReportHandler       *httpH.ReportHandler
	AdjustmentHandler   *httpH.AdjustmentHandler
	PromptConfigHandler *httpH.PromptConfigHandler
	JobHandler          *httpH.JobHandler
	RealtimeHandler     *httpH.RealtimeHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS())
	r.Use(httpMW.AttachRequestUser())
	r.Use(httpMW.RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ReportHandler != nil {
			api.GET("/reports", cfg.ReportHandler.ListReports)
			api.POST("/reports", cfg.ReportHandler.CreateReport)
			api.GET("/reports/:id", cfg.ReportHandler.GetReport)
			api.POST("/reports/:id/run", cfg.ReportHandler.RunReport)
			api.GET("/reports/:id/content", cfg.ReportHandler.GetLatestContent)
			api.GET("/reports/:id/preview", cfg.ReportHandler.PreviewReport)
			api.GET("/reports/:id/versions", cfg.ReportHandler.ListVersions)
			api.POST("/reports/:id/stages/:stage", cfg.ReportHandler.ExecuteStage)
			api.GET("/reports/:id/stages/:stage/output", cfg.ReportHandler.GetStageOutput)
			api.GET("/reports/:id/stages/:stage/proposals", cfg.ReportHandler.ListProposals)
			api.POST("/reports/:id/stages/:stage/rollback", cfg.ReportHandler.RollbackChange)
		}

		if cfg.AdjustmentHandler != nil {
			api.POST("/adjustments/sessions", cfg.AdjustmentHandler.CreateSession)
			api.GET("/adjustments/sessions/:id", cfg.AdjustmentHandler.GetSession)
			api.POST("/adjustments/sessions/:id/analyze", cfg.AdjustmentHandler.AnalyzeAdjustment)
			api.POST("/adjustments/sessions/:id/apply", cfg.AdjustmentHandler.ApplyAdjustments)
			api.GET("/adjustments/sessions/:id/history", cfg.AdjustmentHandler.History)
		}

		if cfg.PromptConfigHandler != nil {
			api.GET("/prompt-configs/active", cfg.PromptConfigHandler.GetActive)
			api.POST("/prompt-configs", cfg.PromptConfigHandler.Create)
			api.POST("/prompt-configs/:name/activate", cfg.PromptConfigHandler.Activate)
		}

		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}

		if cfg.RealtimeHandler != nil {
			api.GET("/events", cfg.RealtimeHandler.Stream)
			api.POST("/events/subscribe", cfg.RealtimeHandler.Subscribe)
		}
	}

	return r
}
