package repository

import (
	"context"
	"sync"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
)

type memorySubscriptionRepository struct {
	mu       sync.RWMutex
	customer map[string]entity.PushSubscription
	support  []entity.PushSubscription
}

func NewMemorySubscriptionRepository() repository.SubscriptionRepository {
	return &memorySubscriptionRepository{
		customer: make(map[string]entity.PushSubscription),
	}
}

func (r *memorySubscriptionRepository) GetPushSubscription(ctx context.Context, id entity.ConversationID) (*entity.PushSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.customer[id.String()]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *memorySubscriptionRepository) SavePushSubscription(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *sub
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.customer[id.String()] = stored
	return nil
}

func (r *memorySubscriptionRepository) ListSupportSubscriptions(ctx context.Context) ([]*entity.PushSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*entity.PushSubscription, 0, len(r.support))
	for i := range r.support {
		sub := r.support[i]
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (r *memorySubscriptionRepository) AddSupportSubscription(ctx context.Context, sub *entity.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.support {
		if existing.Identity() == sub.Identity() {
			return nil
		}
	}

	stored := *sub
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.support = append(r.support, stored)
	return nil
}

func (r *memorySubscriptionRepository) RemoveSupportSubscription(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.support[:0]
	for _, existing := range r.support {
		if existing.Identity() != identity {
			kept = append(kept, existing)
		}
	}
	r.support = kept
	return nil
}
