package push

import (
	"context"
	"fmt"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

// Router picks the provider by subscription shape: endpoints go to web push,
// bare tokens go to FCM. Either provider may be nil.
type Router struct {
	webPush service.PushSender
	fcm     service.PushSender
}

func NewRouter(webPush, fcm service.PushSender) *Router {
	return &Router{webPush: webPush, fcm: fcm}
}

func (r *Router) Send(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) error {
	switch {
	case sub.Endpoint != "" && r.webPush != nil:
		return r.webPush.Send(ctx, sub, notification)
	case sub.Token != "" && r.fcm != nil:
		return r.fcm.Send(ctx, sub, notification)
	}
	return fmt.Errorf("push: no provider configured for subscription %q", sub.Identity())
}
