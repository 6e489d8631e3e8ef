package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"helpdesk/internal/domain/entity"
)

func TestMemoryConversationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConversationRepository()
	id := entity.ComplaintConversation(12)

	ledger, err := repo.GetLedger(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, ledger)
	assert.Empty(t, ledger)

	first := &entity.Message{ID: 1, SenderRole: entity.RoleCustomer, Text: "hi", Status: entity.StatusSent}
	second := &entity.Message{ID: 2, SenderRole: entity.RoleSupport, Text: "hello", Status: entity.StatusSent}
	require.NoError(t, repo.AppendToLedger(ctx, id, first))
	require.NoError(t, repo.AppendToLedger(ctx, id, second))

	ledger, err = repo.GetLedger(ctx, id)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, int64(1), ledger[0].ID)
	assert.Equal(t, int64(2), ledger[1].ID)

	// Reads hand out copies.
	ledger[0].Status = entity.StatusRead
	again, err := repo.GetLedger(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSent, again[0].Status)

	again[0].Status = entity.StatusDelivered
	require.NoError(t, repo.OverwriteLedger(ctx, id, again))
	stored, err := repo.GetLedger(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDelivered, stored[0].Status)

	require.NoError(t, repo.UpdateStatus(ctx, id, entity.ConversationResolved))
	stored, err = repo.GetLedger(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	other, err := repo.GetLedger(ctx, entity.EmployeeThread("12"))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemorySubscriptionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySubscriptionRepository()
	id := entity.ComplaintConversation(5)

	sub, err := repo.GetPushSubscription(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sub)

	require.NoError(t, repo.SavePushSubscription(ctx, id, &entity.PushSubscription{Endpoint: "https://push/a"}))
	require.NoError(t, repo.SavePushSubscription(ctx, id, &entity.PushSubscription{Endpoint: "https://push/b"}))
	sub, err = repo.GetPushSubscription(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "https://push/b", sub.Endpoint)
	assert.False(t, sub.CreatedAt.IsZero())

	require.NoError(t, repo.AddSupportSubscription(ctx, &entity.PushSubscription{Endpoint: "https://push/agent"}))
	require.NoError(t, repo.AddSupportSubscription(ctx, &entity.PushSubscription{Endpoint: "https://push/agent"}))
	require.NoError(t, repo.AddSupportSubscription(ctx, &entity.PushSubscription{Token: "fcm-token"}))

	subs, err := repo.ListSupportSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, repo.RemoveSupportSubscription(ctx, "https://push/agent"))
	subs, err = repo.ListSupportSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "fcm-token", subs[0].Identity())
}

func TestDecodeMessageRowPrefersStatusColumn(t *testing.T) {
	replyTo := int64(3)
	payload, err := json.Marshal(&entity.Message{
		ID:               4,
		ConversationID:   "EMP_777",
		SenderRole:       entity.RoleEmployee,
		Text:             "ping",
		ReplyToMessageID: &replyTo,
		CreatedAt:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:           entity.StatusSent,
	})
	require.NoError(t, err)

	message, err := decodeMessageRow(payload, "read")
	require.NoError(t, err)
	assert.Equal(t, int64(4), message.ID)
	assert.Equal(t, entity.StatusRead, message.Status)
	require.NotNil(t, message.ReplyToMessageID)
	assert.Equal(t, int64(3), *message.ReplyToMessageID)

	_, err = decodeMessageRow([]byte("{"), "sent")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(fmt.Errorf("boom")))
}

func TestSubscriptionDocIDIsStable(t *testing.T) {
	a := subscriptionDocID("https://push/agent")
	assert.Equal(t, a, subscriptionDocID("https://push/agent"))
	assert.NotEqual(t, a, subscriptionDocID("https://push/other"))
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "/")
}

func TestSubscriptionDocumentInlinesFields(t *testing.T) {
	doc := newSubscriptionDocument("EMP_1", &entity.PushSubscription{
		Endpoint: "https://push/a",
		Keys:     entity.PushKeys{P256dh: "p", Auth: "a"},
	})
	assert.False(t, doc.CreatedAt.IsZero())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "EMP_1", fields["_id"])
	assert.Equal(t, "https://push/a", fields["endpoint"])
	assert.Contains(t, fields, "keys")

	var decoded subscriptionDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "p", decoded.Keys.P256dh)
}

func TestMemoryOverwriteKeepsConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConversationRepository()
	id := entity.ComplaintConversation(77)

	require.NoError(t, repo.AppendToLedger(ctx, id, &entity.Message{ID: 1, SenderRole: entity.RoleCustomer, Text: "a", Status: entity.StatusSent}))

	stale, err := repo.GetLedger(ctx, id)
	require.NoError(t, err)

	require.NoError(t, repo.AppendToLedger(ctx, id, &entity.Message{ID: 2, SenderRole: entity.RoleCustomer, Text: "b", Status: entity.StatusSent}))

	stale[0].Status = entity.StatusRead
	require.NoError(t, repo.OverwriteLedger(ctx, id, stale))

	ledger, err := repo.GetLedger(ctx, id)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, entity.StatusRead, ledger[0].Status)
	assert.Equal(t, entity.StatusSent, ledger[1].Status)

	// A stale lower status does not undo the read receipt.
	stale[0].Status = entity.StatusDelivered
	require.NoError(t, repo.OverwriteLedger(ctx, id, stale))
	ledger, err = repo.GetLedger(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRead, ledger[0].Status)
}

func TestMongoStatusUpdatesTargetOnlyLowerRanks(t *testing.T) {
	set, filters := statusUpdates([]*entity.Message{
		{ID: 1, Status: entity.StatusRead},
		{ID: 2, Status: entity.StatusRead},
		{ID: 3, Status: entity.StatusDelivered},
		{ID: 4, Status: entity.StatusSent},
	})

	assert.Equal(t, bson.M{
		"messages.$[delivered].status": entity.StatusDelivered,
		"messages.$[read].status":      entity.StatusRead,
	}, set)
	require.Len(t, filters, 2)
	assert.Equal(t, bson.M{
		"delivered.id":     bson.M{"$in": []int64{3}},
		"delivered.status": bson.M{"$in": []string{"sent"}},
	}, filters[0])
	assert.Equal(t, bson.M{
		"read.id":     bson.M{"$in": []int64{1, 2}},
		"read.status": bson.M{"$in": []string{"sent", "delivered"}},
	}, filters[1])

	set, filters = statusUpdates([]*entity.Message{{ID: 9, Status: entity.StatusSent}})
	assert.Empty(t, set)
	assert.Empty(t, filters)
}
