package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ascribenow/Workandcat-sub001/internal/handlers"
)

type RouterConfig struct {
	EngineHandler *handlers.EngineHandler
	ServiceName   string
	AllowOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/mastery/:user_id", cfg.EngineHandler.GetMasteryProfile)
		api.POST("/diagnostic/set", cfg.EngineHandler.CreateDiagnosticSet)
		api.POST("/diagnostic/start", cfg.EngineHandler.StartDiagnostic)
		api.GET("/diagnostic/:session_id/questions", cfg.EngineHandler.GetDiagnosticQuestions)
		api.POST("/diagnostic/:session_id/complete", cfg.EngineHandler.CompleteDiagnostic)
		api.GET("/diagnostic/:session_id/result", cfg.EngineHandler.GetDiagnosticResult)
		api.POST("/practice/select", cfg.EngineHandler.SelectAdaptiveQuestions)
		api.POST("/plan", cfg.EngineHandler.CreatePlan)
		api.POST("/plan/:plan_id/adjust", cfg.EngineHandler.AdjustPlanNightly)
	}

	return router
}
