package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/pkg/errors"
)

type subscriptionDocument struct {
	ID                      string `bson:"_id"`
	entity.PushSubscription `bson:",inline"`
}

type mongoSubscriptionRepository struct {
	customer *mongo.Collection
	support  *mongo.Collection
}

func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	return &mongoSubscriptionRepository{
		customer: db.Collection(pushSubscriptionsCollection),
		support:  db.Collection(supportSubscriptionsCollection),
	}
}

func (r *mongoSubscriptionRepository) GetPushSubscription(ctx context.Context, id entity.ConversationID) (*entity.PushSubscription, error) {
	var doc subscriptionDocument
	err := r.customer.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to get push subscription", err)
	}

	return &doc.PushSubscription, nil
}

func (r *mongoSubscriptionRepository) SavePushSubscription(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error {
	doc := newSubscriptionDocument(id.String(), sub)

	_, err := r.customer.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Internal("Failed to save push subscription", err)
	}

	return nil
}

func (r *mongoSubscriptionRepository) ListSupportSubscriptions(ctx context.Context) ([]*entity.PushSubscription, error) {
	cursor, err := r.support.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, errors.Internal("Failed to list support subscriptions", err)
	}
	defer cursor.Close(ctx)

	var subs []*entity.PushSubscription
	for cursor.Next(ctx) {
		var doc subscriptionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Internal("Failed to parse support subscription", err)
		}
		sub := doc.PushSubscription
		subs = append(subs, &sub)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate support subscriptions", err)
	}

	return subs, nil
}

func (r *mongoSubscriptionRepository) AddSupportSubscription(ctx context.Context, sub *entity.PushSubscription) error {
	_, err := r.support.InsertOne(ctx, newSubscriptionDocument(sub.Identity(), sub))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Internal("Failed to save support subscription", err)
	}

	return nil
}

func (r *mongoSubscriptionRepository) RemoveSupportSubscription(ctx context.Context, identity string) error {
	if _, err := r.support.DeleteOne(ctx, bson.M{"_id": identity}); err != nil {
		return errors.Internal("Failed to remove support subscription", err)
	}
	return nil
}

func newSubscriptionDocument(id string, sub *entity.PushSubscription) subscriptionDocument {
	doc := subscriptionDocument{ID: id, PushSubscription: *sub}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	return doc
}
