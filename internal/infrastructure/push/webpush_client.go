package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

const defaultTTL = 24 * 60 * 60

// WebPushClient delivers notifications to browser subscriptions with VAPID.
type WebPushClient struct {
	publicKey  string
	privateKey string
	subscriber string
	httpClient *http.Client
}

func NewWebPushClient(publicKey, privateKey, subscriber string) (*WebPushClient, error) {
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("webpush: VAPID keys are required")
	}
	return &WebPushClient{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *WebPushClient) Send(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("webpush: subscription has no endpoint")
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.subscriber,
		VAPIDPublicKey:  c.publicKey,
		VAPIDPrivateKey: c.privateKey,
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("webpush: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return service.ErrSubscriptionGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("webpush: push service answered %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh key pair for deployments without one.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
