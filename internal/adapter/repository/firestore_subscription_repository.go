package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/pkg/errors"
)

const (
	pushSubscriptionsCollection    = "push_subscriptions"
	supportSubscriptionsCollection = "support_subscriptions"
)

type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

func NewFirestoreSubscriptionRepository(client *firestore.Client) repository.SubscriptionRepository {
	return &firestoreSubscriptionRepository{
		client: client,
	}
}

func (r *firestoreSubscriptionRepository) GetPushSubscription(ctx context.Context, id entity.ConversationID) (*entity.PushSubscription, error) {
	doc, err := r.client.Collection(pushSubscriptionsCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errors.Internal("Failed to get push subscription", err)
	}

	var sub entity.PushSubscription
	if err := doc.DataTo(&sub); err != nil {
		return nil, errors.Internal("Failed to parse push subscription", err)
	}

	return &sub, nil
}

func (r *firestoreSubscriptionRepository) SavePushSubscription(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error {
	stored := *sub
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(pushSubscriptionsCollection).Doc(id.String()).Set(ctx, stored)
	if err != nil {
		return errors.Internal("Failed to save push subscription", err)
	}

	return nil
}

func (r *firestoreSubscriptionRepository) ListSupportSubscriptions(ctx context.Context) ([]*entity.PushSubscription, error) {
	iter := r.client.Collection(supportSubscriptionsCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var subs []*entity.PushSubscription
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate support subscriptions", err)
		}

		var sub entity.PushSubscription
		if err := doc.DataTo(&sub); err != nil {
			return nil, errors.Internal("Failed to parse support subscription", err)
		}
		subs = append(subs, &sub)
	}

	return subs, nil
}

// AddSupportSubscription keys documents by a digest of the identity so the
// same endpoint registered twice lands on one document.
func (r *firestoreSubscriptionRepository) AddSupportSubscription(ctx context.Context, sub *entity.PushSubscription) error {
	docRef := r.client.Collection(supportSubscriptionsCollection).Doc(subscriptionDocID(sub.Identity()))

	stored := *sub
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	_, err := docRef.Create(ctx, stored)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return errors.Internal("Failed to save support subscription", err)
	}

	return nil
}

func (r *firestoreSubscriptionRepository) RemoveSupportSubscription(ctx context.Context, identity string) error {
	_, err := r.client.Collection(supportSubscriptionsCollection).Doc(subscriptionDocID(identity)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return errors.Internal("Failed to remove support subscription", err)
	}

	return nil
}

func subscriptionDocID(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
