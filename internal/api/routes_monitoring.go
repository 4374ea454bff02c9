package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/handlers"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler, requireAuth gin.HandlerFunc) {
	if api == nil || handler == nil {
		return
	}

	group := api.Group("/monitoring")
	group.GET("/summary", requireAuth, handler.Summary)
}
