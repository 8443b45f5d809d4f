package api

import (
	"IntentCode/backend/go/internal/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the API routes.
func RegisterRoutes(router *gin.Engine, api *API, jwtSecret string) {
	router.GET("/healthz", api.HealthHandler)
	router.GET("/readyz", api.ReadyHandler)

	v1 := router.Group("/api/v1")
	v1.Use(auth.Middleware(jwtSecret))
	{
		v1.GET("/session", api.SessionHandler)
		v1.DELETE("/session", api.SignOutHandler)
		v1.DELETE("/selection", api.ClearSelectionHandler)

		v1.GET("/projects", api.ListProjectsHandler)
		v1.POST("/projects", api.CreateProjectHandler)
		v1.POST("/intentions", api.CreateFromIntentionHandler)
		v1.GET("/intentions", api.ListIntentionsHandler)

		projects := v1.Group("/projects/:id")
		{
			projects.GET("", api.GetProjectHandler)
			projects.PUT("", api.SaveProjectHandler)
			projects.GET("/tree", api.TreeHandler)
			projects.POST("/files", api.AddFileHandler)
			projects.PUT("/files/:fileId", api.UpdateFileHandler)
			projects.DELETE("/files/:fileId", api.DeleteFileHandler)
			projects.PUT("/context", api.UpdateContextHandler)
			projects.PUT("/instructions", api.UpdateInstructionsHandler)
			projects.POST("/export", api.ExportHandler)
			projects.GET("/archive", api.ArchiveHandler)
			projects.POST("/select", api.SelectProjectHandler)
		}

		v1.GET("/ws", api.WebSocketHandler)
	}
}
