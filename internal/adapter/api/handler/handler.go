package handler

import (
	ws "helpdesk/internal/infrastructure/websocket"
	"helpdesk/internal/usecase"
)

var (
	chatHandler         *ChatHandler
	subscriptionHandler *SubscriptionHandler
	presenceHandler     *PresenceHandler
	webSocketHandler    *WebSocketHandler
	healthHandler       *HealthHandler
)

func Setup(
	chatUseCase *usecase.ChatUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	wsManager *ws.Manager,
	allowedOrigins []string,
	checks map[string]HealthCheck,
) {
	chatHandler = NewChatHandler(chatUseCase)
	subscriptionHandler = NewSubscriptionHandler(notificationUseCase)
	presenceHandler = NewPresenceHandler(wsManager)
	webSocketHandler = NewWebSocketHandler(wsManager, allowedOrigins)
	healthHandler = NewHealthHandler(checks)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetSubscriptionHandler() *SubscriptionHandler {
	return subscriptionHandler
}

func GetPresenceHandler() *PresenceHandler {
	return presenceHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
