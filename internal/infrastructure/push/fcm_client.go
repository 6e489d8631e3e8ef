package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

// FCMClient delivers notifications to Firebase Cloud Messaging registration tokens.
type FCMClient struct {
	client *messaging.Client
}

func NewFCMClient(client *messaging.Client) *FCMClient {
	return &FCMClient{client: client}
}

func (c *FCMClient) Send(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) error {
	if sub.Token == "" {
		return fmt.Errorf("fcm: subscription has no registration token")
	}

	_, err := c.client.Send(ctx, fcmMessage(sub.Token, notification))
	if messaging.IsUnregistered(err) {
		return service.ErrSubscriptionGone
	}
	if err != nil {
		return fmt.Errorf("fcm: %w", err)
	}
	return nil
}

func fcmMessage(token string, notification entity.PushNotification) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    notification.Title,
			Body:     notification.Body,
			ImageURL: notification.Icon,
		},
		Data: map[string]string{
			"url": notification.URL,
			"tag": notification.Tag,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Tag:   notification.Tag,
				Badge: notification.Badge,
				Icon:  notification.Icon,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: notification.URL},
		},
	}
}
