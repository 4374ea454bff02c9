package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/app"
	"github.com/mysterymsg/mystery/internal/handlers"
	"github.com/mysterymsg/mystery/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		for _, router := range []gin.IRouter{r, r.Group("/api")} {
			router.GET("/health", handlers.DisabledHealth)
			router.GET("/health/live", handlers.DisabledHealth)
			router.GET("/health/ready", handlers.DisabledHealth)
		}
		return
	}

	handler := handlers.NewHealthHandler(manager)
	registerHealthEndpoints(r, handler)
	registerHealthEndpoints(r.Group("/api"), handler)
}

func registerHealthEndpoints(router gin.IRouter, handler *handlers.HealthHandler) {
	router.GET("/health", handler.Health)
	router.GET("/health/live", handler.Live)
	router.GET("/health/ready", handler.Ready)
}
