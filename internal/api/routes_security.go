package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/handlers"
)

func registerSecurityRoutes(api *gin.RouterGroup, handler *handlers.SecurityHandler, requireAuth gin.HandlerFunc) {
	if api == nil || handler == nil {
		return
	}

	sec := api.Group("/security")
	sec.GET("/audit", requireAuth, handler.Audit)
}
