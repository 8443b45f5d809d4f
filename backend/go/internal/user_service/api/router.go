package api

import (
	"IntentCode/backend/go/internal/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 在给定的引擎上注册用户服务的路由。
func RegisterRoutes(r *gin.Engine, h *Handler, jwtSecret string) {
	apiV1 := r.Group("/api/v1")
	{
		// 用户认证路由组
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", h.RegisterEmail)
			authGroup.POST("/login", h.LoginEmail)
			authGroup.POST("/google/login", h.HandleGoogleLogin)
		}

		// 使用认证中间件保护这个组下的所有路由
		users := apiV1.Group("/users")
		users.Use(auth.Middleware(jwtSecret))
		{
			users.GET("/me", h.Me)
			users.PUT("/me/settings", h.UpdateSettings)
		}
	}
}
