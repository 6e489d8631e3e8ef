package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"helpdesk/pkg/errors"
	"helpdesk/pkg/response"
)

// OnlineLister lists conversations with a live external participant.
type OnlineLister interface {
	OnlineConversations(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	online OnlineLister
}

func NewPresenceHandler(online OnlineLister) *PresenceHandler {
	return &PresenceHandler{online: online}
}

func (h *PresenceHandler) GetOnline(c echo.Context) error {
	ids, err := h.online.OnlineConversations(c.Request().Context())
	if err != nil {
		return response.Error(c, errors.Internal("Failed to load presence", err))
	}

	return response.Success(c, map[string]interface{}{
		"conversations": ids,
	})
}
