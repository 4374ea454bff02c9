package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/handlers"
)

func registerAccountRoutes(api *gin.RouterGroup, handler *handlers.AccountHandler, requireAuth gin.HandlerFunc) {
	api.POST("/sign-up", handler.SignUp)
	api.POST("/resend-code", handler.ResendCode)
	api.POST("/verify-code", handler.VerifyCode)
	api.POST("/sign-in", handler.SignIn)
	api.GET("/check-username-unique", handler.CheckUsernameUnique)

	api.GET("/me", requireAuth, handler.Me)
}
