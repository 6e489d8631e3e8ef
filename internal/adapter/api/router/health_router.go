package router

import (
	"github.com/labstack/echo/v4"

	"helpdesk/internal/adapter/api/handler"
	"helpdesk/internal/infrastructure/metrics"
)

func SetupHealthRouter(e *echo.Echo, m *metrics.Metrics) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/health/ready", healthHandler.CheckReadiness)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}
