package router

import (
	"github.com/labstack/echo/v4"

	"helpdesk/internal/adapter/api/handler"
)

// SetupChatRouter sets up conversation, subscription and presence routes
func SetupChatRouter(e *echo.Echo, apiLimit, sendLimit echo.MiddlewareFunc) {
	chatHandler := handler.GetChatHandler()
	subscriptionHandler := handler.GetSubscriptionHandler()
	presenceHandler := handler.GetPresenceHandler()

	v1 := e.Group("/v1")
	v1.Use(apiLimit)

	conversations := v1.Group("/conversations")
	conversations.GET("/:id/messages", chatHandler.GetMessages)             // GET /v1/conversations/:id/messages
	conversations.POST("/:id/messages", chatHandler.SendMessage, sendLimit) // POST /v1/conversations/:id/messages
	conversations.PUT("/:id/delivered", chatHandler.MarkDelivered)          // PUT /v1/conversations/:id/delivered
	conversations.PUT("/:id/read", chatHandler.MarkRead)                    // PUT /v1/conversations/:id/read
	conversations.PATCH("/:id/status", chatHandler.UpdateStatus)            // PATCH /v1/conversations/:id/status
	conversations.POST("/:id/subscribe", subscriptionHandler.Subscribe)     // POST /v1/conversations/:id/subscribe
	conversations.POST("/:id/test-push", subscriptionHandler.TestPush)      // POST /v1/conversations/:id/test-push

	v1.POST("/support/subscribe", subscriptionHandler.SubscribeSupport)
	v1.GET("/presence/online", presenceHandler.GetOnline)
}
