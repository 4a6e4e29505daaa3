package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/advieskamer/advies-backend/internal/adjust"
	"github.com/advieskamer/advies-backend/internal/aiconfig"
	"github.com/advieskamer/advies-backend/internal/data/db"
	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/data/seed"
	httpserver "github.com/advieskamer/advies-backend/internal/http"
	httpH "github.com/advieskamer/advies-backend/internal/http/handlers"
	"github.com/advieskamer/advies-backend/internal/jobs/pipeline/adjust_analyze"
	"github.com/advieskamer/advies-backend/internal/jobs/pipeline/adjust_apply"
	"github.com/advieskamer/advies-backend/internal/jobs/pipeline/report_run"
	"github.com/advieskamer/advies-backend/internal/jobs/pipeline/report_stage"
	"github.com/advieskamer/advies-backend/internal/jobs/runtime"
	"github.com/advieskamer/advies-backend/internal/jobs/worker"
	"github.com/advieskamer/advies-backend/internal/modelcall"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/envutil"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
	"github.com/advieskamer/advies-backend/internal/realtime"
	"github.com/advieskamer/advies-backend/internal/rollback"
	"github.com/advieskamer/advies-backend/internal/services"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	pg := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	reportRepo := repos.NewReportRepo(pg, log)
	snapshotRepo := repos.NewSnapshotRepo(pg, log)
	stageOutputRepo := repos.NewStageOutputRepo(pg, log)
	adjustmentRepo := repos.NewAdjustmentRepo(pg, log)
	promptConfigRepo := repos.NewPromptConfigRepo(pg, log)
	jobRunRepo := repos.NewJobRunRepo(pg, log)

	// Prompt config seed
	if seedPath := envutil.String("PROMPT_SEED_PATH", "configs/prompts.yaml"); seedPath != "" {
		if err := seed.PromptConfigFromFile(dbctx.Context{Ctx: context.Background()}, promptConfigRepo, log, seedPath); err != nil {
			log.Warn("Prompt config seed failed", "path", seedPath, "error", err)
		}
	}

	// Realtime
	log.Info("Setting up realtime hub...")
	hub := realtime.NewHub(log)
	var bus realtime.Bus
	if envutil.String("REDIS_ADDR", "") != "" {
		bus, err = realtime.NewRedisBus(log)
		if err != nil {
			log.Warn("Redis bus init failed, falling back to local bus", "error", err)
			bus = realtime.NewLocalBus()
		}
	} else {
		bus = realtime.NewLocalBus()
	}
	if err := bus.StartForwarder(context.Background(), hub.Broadcast); err != nil {
		log.Fatal("Bus forwarder failed", "error", err)
	}

	// Services
	log.Info("Setting up services...")
	notifier := services.NewJobNotifier(bus)
	jobService := services.NewJobService(pg, log, jobRunRepo, notifier)

	resolver := aiconfig.NewResolver(log)
	models := modelcall.NewFactory(log)
	callTimeout := envutil.Duration("MODEL_CALL_TIMEOUT", 5*time.Minute)

	stagePipeline := pipeline.New(pg, log, reportRepo, stageOutputRepo, snapshotRepo, promptConfigRepo, resolver, models, callTimeout)
	rollbackEngine := rollback.New(pg, log, reportRepo, stageOutputRepo, snapshotRepo)
	adjustService := adjust.New(pg, log, adjustmentRepo, snapshotRepo, promptConfigRepo, resolver, models, callTimeout)

	// Jobs
	log.Info("Setting up job worker...")
	registry := runtime.NewRegistry()
	mustRegister(log, registry, report_run.New(pg, log, reportRepo, stagePipeline))
	mustRegister(log, registry, report_stage.New(pg, log, stagePipeline))
	mustRegister(log, registry, adjust_analyze.New(pg, log, adjustService))
	mustRegister(log, registry, adjust_apply.New(pg, log, adjustService))

	jobWorker := worker.NewWorker(pg, log, jobRunRepo, registry, notifier)
	jobWorker.Start(context.Background())

	// HTTP
	log.Info("Setting up router...")
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:                 log,
		ReportHandler:       httpH.NewReportHandler(reportRepo, stageOutputRepo, snapshotRepo, stagePipeline, rollbackEngine, jobService),
		AdjustmentHandler:   httpH.NewAdjustmentHandler(adjustService, jobService),
		PromptConfigHandler: httpH.NewPromptConfigHandler(promptConfigRepo),
		JobHandler:          httpH.NewJobHandler(jobService),
		RealtimeHandler:     httpH.NewRealtimeHandler(log, hub),
		HealthHandler:       httpH.NewHealthHandler(),
	})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}

func mustRegister(log *logger.Logger, registry *runtime.Registry, h runtime.Handler) {
	if err := registry.Register(h); err != nil {
		log.Fatal("Handler registration failed", "job_type", h.Type(), "error", err)
	}
}
