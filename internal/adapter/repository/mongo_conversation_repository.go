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

type mongoConversationRepository struct {
	conversations *mongo.Collection
}

// NewMongoConversationRepository keeps one document per conversation with the
// ledger embedded as an array, mirroring the Firestore layout.
func NewMongoConversationRepository(db *mongo.Database) repository.ConversationRepository {
	return &mongoConversationRepository{
		conversations: db.Collection(conversationsCollection),
	}
}

func (r *mongoConversationRepository) GetLedger(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	var conv entity.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return []*entity.Message{}, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to load conversation", err)
	}
	if conv.Messages == nil {
		return []*entity.Message{}, nil
	}

	return conv.Messages, nil
}

func (r *mongoConversationRepository) AppendToLedger(ctx context.Context, id entity.ConversationID, message *entity.Message) error {
	_, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{
			"$push":        bson.M{"messages": message},
			"$set":         bson.M{"updatedAt": time.Now()},
			"$setOnInsert": bson.M{"status": entity.ConversationPending},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

// OverwriteLedger raises statuses in place with array filters instead of
// replacing the messages array, so concurrent appends survive and a status
// already further along is never lowered.
func (r *mongoConversationRepository) OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error {
	set, filters := statusUpdates(ledger)
	if len(filters) == 0 {
		return nil
	}
	set["updatedAt"] = time.Now()

	_, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": set},
		options.Update().SetArrayFilters(options.ArrayFilters{Filters: filters}),
	)
	if err != nil {
		return errors.Internal("Failed to update messages", err)
	}

	return nil
}

// statusUpdates groups message ids by their target status and builds one
// filtered positional $set per status. Each filter only matches elements of
// a strictly lower rank.
func statusUpdates(ledger []*entity.Message) (bson.M, []interface{}) {
	targets := []entity.MessageStatus{entity.StatusDelivered, entity.StatusRead}
	ids := make(map[entity.MessageStatus][]int64, len(targets))
	for _, m := range ledger {
		ids[m.Status] = append(ids[m.Status], m.ID)
	}

	set := bson.M{}
	var filters []interface{}
	for _, target := range targets {
		if len(ids[target]) == 0 {
			continue
		}

		var lower []string
		for _, s := range []entity.MessageStatus{entity.StatusSent, entity.StatusDelivered, entity.StatusRead} {
			if s.Rank() < target.Rank() {
				lower = append(lower, string(s))
			}
		}

		ident := string(target)
		set["messages.$["+ident+"].status"] = target
		filters = append(filters, bson.M{
			ident + ".id":     bson.M{"$in": ids[target]},
			ident + ".status": bson.M{"$in": lower},
		})
	}
	return set, filters
}

func (r *mongoConversationRepository) UpdateStatus(ctx context.Context, id entity.ConversationID, status entity.ConversationStatus) error {
	_, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Internal("Failed to update conversation status", err)
	}

	return nil
}
