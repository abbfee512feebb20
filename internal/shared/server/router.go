package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/documents"
	"legal-backend/internal/pipeline"
	"legal-backend/internal/services/health"
	"legal-backend/internal/shared/config"
	"legal-backend/internal/shared/metrics"
	"legal-backend/internal/shared/server/middleware"
	"legal-backend/internal/shared/server/respond"
)

const startRateGroup = "ANALYSIS_START"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	PipelineHandler *pipeline.Handler
	Admission       *pipeline.Admission
	// RateLimiter defaults to a fresh limiter on the wall clock.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.Owner(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	var gauge health.Gauge
	if deps.Admission != nil {
		gauge = deps.Admission
	}
	healthSvc := health.NewService(gauge)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)

		starts := api.Group("")
		starts.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				startRateGroup: startRule(deps.Config),
			},
			DefaultGroup: startRateGroup,
			Limiter:      deps.RateLimiter,
		}))
		deps.PipelineHandler.RegisterStartRoutes(starts)
	}

	return r
}

func startRule(cfg config.Config) middleware.RateLimitRule {
	perMinute := cfg.StartsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := cfg.StartBurst
	if burst <= 0 {
		burst = 1
	}
	return middleware.RateLimitRule{Rate: float64(perMinute) / 60, Burst: burst}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
