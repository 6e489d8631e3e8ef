package service

import (
	"context"
	"errors"

	"helpdesk/internal/domain/entity"
)

// ErrSubscriptionGone is returned by a PushSender when the endpoint no longer
// exists and the subscription should be forgotten.
var ErrSubscriptionGone = errors.New("push subscription gone")

type PushSender interface {
	Send(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) error
}
