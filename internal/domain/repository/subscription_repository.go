package repository

import (
	"context"

	"helpdesk/internal/domain/entity"
)

type SubscriptionRepository interface {
	// GetPushSubscription returns nil, nil when the conversation has none.
	GetPushSubscription(ctx context.Context, id entity.ConversationID) (*entity.PushSubscription, error)
	SavePushSubscription(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error

	ListSupportSubscriptions(ctx context.Context) ([]*entity.PushSubscription, error)
	// AddSupportSubscription is a no-op when a subscription with the same identity exists.
	AddSupportSubscription(ctx context.Context, sub *entity.PushSubscription) error
	RemoveSupportSubscription(ctx context.Context, identity string) error
}
