package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/handlers"
)

func registerMessageRoutes(api *gin.RouterGroup, handler *handlers.MessageHandler, requireAuth gin.HandlerFunc) {
	// Anonymous senders need no session.
	api.POST("/send-message", handler.SendMessage)

	inbox := api.Group("")
	inbox.Use(requireAuth)
	{
		inbox.GET("/accept-messages", handler.GetAcceptMessages)
		inbox.POST("/accept-messages", handler.SetAcceptMessages)
		inbox.GET("/get-messages", handler.GetMessages)
		inbox.DELETE("/delete-message/:messageid", handler.DeleteMessage)
	}
}
