package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/pkg/errors"
)

const conversationsCollection = "conversations"

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) doc(id entity.ConversationID) *firestore.DocumentRef {
	return r.client.Collection(conversationsCollection).Doc(id.String())
}

func (r *firestoreConversationRepository) GetLedger(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return []*entity.Message{}, nil
		}
		return nil, errors.Internal("Failed to load conversation", err)
	}

	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	if conv.Messages == nil {
		return []*entity.Message{}, nil
	}

	return conv.Messages, nil
}

func (r *firestoreConversationRepository) AppendToLedger(ctx context.Context, id entity.ConversationID, message *entity.Message) error {
	docRef := r.doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		conv := entity.Conversation{ID: id.String(), Status: entity.ConversationPending}

		doc, err := tx.Get(docRef)
		switch {
		case err == nil:
			if err := doc.DataTo(&conv); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		conv.Messages = append(conv.Messages, message)
		conv.UpdatedAt = time.Now()

		return tx.Set(docRef, conv)
	})
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

// OverwriteLedger merges statuses inside a transaction so an append committed
// by another instance after ledger was read is kept.
func (r *firestoreConversationRepository) OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error {
	docRef := r.doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			return err
		}

		if entity.MergeStatuses(conv.Messages, ledger) == 0 {
			return nil
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "messages", Value: conv.Messages},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if err != nil {
		return errors.Internal("Failed to update messages", err)
	}

	return nil
}

func (r *firestoreConversationRepository) UpdateStatus(ctx context.Context, id entity.ConversationID, convStatus entity.ConversationStatus) error {
	_, err := r.doc(id).Set(ctx, map[string]interface{}{
		"id":        id.String(),
		"status":    string(convStatus),
		"updatedAt": time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update conversation status", err)
	}

	return nil
}
