package handler

import (
	"github.com/labstack/echo/v4"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/usecase"
	"helpdesk/pkg/response"
)

type SubscriptionHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewSubscriptionHandler(notificationUseCase *usecase.NotificationUseCase) *SubscriptionHandler {
	return &SubscriptionHandler{
		notificationUseCase: notificationUseCase,
	}
}

// subscribeRequest accepts a browser PushSubscription or an FCM token.
type subscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required_with=Auth"`
		Auth   string `json:"auth" validate:"required_with=P256dh"`
	} `json:"keys"`
	Token string `json:"token" validate:"required_without=Endpoint"`
}

func (r subscribeRequest) toEntity() *entity.PushSubscription {
	return &entity.PushSubscription{
		Endpoint: r.Endpoint,
		Keys: entity.PushKeys{
			P256dh: r.Keys.P256dh,
			Auth:   r.Keys.Auth,
		},
		Token: r.Token,
	}
}

// Subscribe stores the device of the conversation's customer or employee.
func (h *SubscriptionHandler) Subscribe(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.notificationUseCase.Subscribe(c.Request().Context(), id, req.toEntity()); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"message": "Subscription saved"})
}

// SubscribeSupport registers a support agent's device.
func (h *SubscriptionHandler) SubscribeSupport(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.notificationUseCase.SubscribeSupport(c.Request().Context(), req.toEntity()); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"message": "Support subscription saved"})
}

func (h *SubscriptionHandler) TestPush(c echo.Context) error {
	id, err := conversationParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.notificationUseCase.SendTestPush(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Test notification sent"})
}
