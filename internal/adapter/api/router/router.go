package router

import (
	"github.com/labstack/echo/v4"

	"helpdesk/internal/adapter/api/middleware"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, limiter *ratelimit.RateLimiter, m *metrics.Metrics) {
	SetupChatRouter(e,
		middleware.RateLimit(limiter, ratelimit.ActionAPI),
		middleware.RateLimitPerConversation(limiter, ratelimit.ActionSendMessage),
	)
	SetupWebSocketRouter(e)
	SetupHealthRouter(e, m)
}
