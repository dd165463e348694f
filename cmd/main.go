package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/db"
	"github.com/ascribenow/Workandcat-sub001/internal/handlers"
	"github.com/ascribenow/Workandcat-sub001/internal/jobs"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/observability"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/server"
	"github.com/ascribenow/Workandcat-sub001/internal/services"
	"github.com/ascribenow/Workandcat-sub001/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownTracing := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "prepcore",
		Environment: logMode,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Engine tunables
	engineCfg, err := config.Load(utils.GetEnv("ENGINE_CONFIG_PATH", "", log))
	if err != nil {
		log.Warn("Engine config load failed, using defaults", "error", err)
	}

	// Database
	dbService, err := db.NewDatabaseService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos...")
	topicRepo := repos.NewTopicRepo(gdb, log)
	questionRepo := repos.NewQuestionRepo(gdb, log)
	attemptRepo := repos.NewAttemptRepo(gdb, log)
	masteryRepo := repos.NewTopicMasteryRepo(gdb, log)
	setRepo := repos.NewDiagnosticSetRepo(gdb, log)
	sessionRepo := repos.NewDiagnosticSessionRepo(gdb, log)
	planRepo := repos.NewStudyPlanRepo(gdb, log)
	unitRepo := repos.NewPlanUnitRepo(gdb, log)

	// Services
	log.Info("Setting up services...")
	spacing := services.NewSpacingPolicy(engineCfg.Spacing)
	masteryService := services.NewMasteryService(gdb, log, engineCfg, attemptRepo, questionRepo, topicRepo, masteryRepo)
	diagnosticService := services.NewDiagnosticService(gdb, log, engineCfg, questionRepo, attemptRepo, setRepo, sessionRepo)
	selectorService := services.NewSelectorService(gdb, log, engineCfg, masteryService, spacing, questionRepo, attemptRepo)
	planService := services.NewPlanService(gdb, log, engineCfg, masteryService, spacing, questionRepo, attemptRepo, planRepo, unitRepo)

	// One-shot nightly batch mode for external schedulers.
	if len(os.Args) > 1 && os.Args[1] == "nightly" {
		adjuster := jobs.NewNightlyAdjuster(log, planRepo, planService)
		adjuster.Concurrency = utils.GetEnvAsInt("NIGHTLY_CONCURRENCY", adjuster.Concurrency, log)
		if err := adjuster.Run(context.Background()); err != nil {
			log.Error("Nightly adjustment failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Router
	engineHandler := handlers.NewEngineHandler(masteryService, diagnosticService, selectorService, planService)
	router := server.NewRouter(server.RouterConfig{
		EngineHandler: engineHandler,
		ServiceName:   "prepcore",
		AllowOrigins:  splitOrigins(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
