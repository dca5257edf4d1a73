package api

import (
	"Courier/internal/api/middleware"
	"Courier/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		convGroup := apiGroup.Group("/conversations")
		{
			convGroup.POST("", group.IMHandler.CreateConversation)
			convGroup.GET("", group.IMHandler.GetConversationList)
			convGroup.GET("/:id/messages", group.IMHandler.GetChatHistory)
			convGroup.GET("/:id/messages/sync", group.IMHandler.SyncMessages)
			convGroup.DELETE("/:id", group.IMHandler.DeleteConversation)
		}

		apiGroup.POST("/messages", group.IMHandler.SendMessage)
	}

	return r
}
