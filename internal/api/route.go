package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/middleware"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/logger"
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

		chatGroup := apiGroup.Group("/chat")
		{
			// WS 握手自带 token 参数鉴权
			chatGroup.GET("/ws", group.WSHandler.Connect)

			authGroup := chatGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/send", group.ChatHandler.SendMessage)
				authGroup.POST("/read", group.ChatHandler.MarkAsRead)
				authGroup.GET("/conversations/:user_id", group.ChatHandler.GetConversationList)
				authGroup.GET("/conversation/:user_a/:user_b", group.ChatHandler.GetDirectHistory)
				authGroup.GET("/history/:conversation_id", group.ChatHandler.GetChatHistory)
				authGroup.GET("/messages/:user_id", group.ChatHandler.GetUserMessages)
				authGroup.GET("/unread-count/:user_id", group.ChatHandler.GetUnreadCount)
				authGroup.DELETE("/messages/:message_id", group.ChatHandler.DeleteMessage)
				authGroup.POST("/conversations/:conversation_id/deactivate", group.ChatHandler.DeactivateConversation)
			}
		}
	}

	return r
}
