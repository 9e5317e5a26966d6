package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedstream-backend/internal/handlers"
)

type RouterConfig struct {
	FeedHandler         *handlers.FeedHandler
	NotificationHandler *handlers.NotificationHandler
	SSEHandler          *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Feeds
		api.POST("/feeds/:user_id/activities", cfg.FeedHandler.Publish)
		api.DELETE("/feeds/:user_id/activities", cfg.FeedHandler.Remove)
		api.GET("/feeds/:user_id", cfg.FeedHandler.Get)
		api.GET("/feeds/:user_id/realtime", cfg.FeedHandler.GetRealtime)

		// Notifications
		api.POST("/notifications/:user_id/activities", cfg.NotificationHandler.Add)
		api.GET("/notifications/:user_id", cfg.NotificationHandler.Get)
		api.POST("/notifications/:user_id/mark", cfg.NotificationHandler.Mark)
		api.GET("/notifications/:user_id/counts", cfg.NotificationHandler.Counts)
		api.GET("/notifications/:user_id/stream", cfg.SSEHandler.Stream)
	}

	return router
}
