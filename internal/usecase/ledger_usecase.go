package usecase

import (
	"context"
	"strings"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/idgen"
	"helpdesk/pkg/logger"
)

// LedgerUseCase owns the append/mutate protocol for conversation ledgers.
// Every operation on a conversation runs under that conversation's lock, so
// the whole-document read-modify-write against the store is single-writer.
type LedgerUseCase struct {
	conversationRepo repository.ConversationRepository
	ids              *idgen.Generator
	locks            *conversationLocks
	metrics          *metrics.Metrics
	now              func() time.Time
}

func NewLedgerUseCase(conversationRepo repository.ConversationRepository, m *metrics.Metrics) *LedgerUseCase {
	return &LedgerUseCase{
		conversationRepo: conversationRepo,
		ids:              idgen.New(),
		locks:            newConversationLocks(),
		metrics:          m,
		now:              time.Now,
	}
}

type AppendInput struct {
	ConversationID   entity.ConversationID
	SenderRole       entity.Role
	Content          entity.MessageContent
	ReplyToMessageID *int64
	// OnAppended runs with the stored message while the conversation lock is
	// still held, so callers observe appends in ledger order.
	OnAppended func(*entity.Message)
}

// Append stores a new message with status sent. The reply preview is resolved
// against the ledger snapshot read under the lock; an unknown reply target
// leaves the preview empty.
func (uc *LedgerUseCase) Append(ctx context.Context, input AppendInput) (*entity.Message, error) {
	if input.ConversationID.IsZero() {
		return nil, errors.BadRequest("Conversation id is required", nil)
	}
	if input.Content.IsEmpty() {
		return nil, errors.BadRequest("Text, image or video is required", nil)
	}

	key := input.ConversationID.String()
	unlock := uc.locks.lock(key)
	defer unlock()

	ledger, err := uc.conversationRepo.GetLedger(ctx, input.ConversationID)
	if err != nil {
		logger.LogPersistenceError(key, "append:load", err)
		return nil, err
	}

	var floor int64
	for _, m := range ledger {
		if m.ID >= floor {
			floor = m.ID + 1
		}
	}

	message := &entity.Message{
		ID:             uc.ids.Next(floor),
		ConversationID: key,
		SenderRole:     input.SenderRole,
		Text:           strings.TrimSpace(input.Content.Text),
		ImageURL:       input.Content.ImageURL,
		VideoURL:       input.Content.VideoURL,
		CreatedAt:      uc.now().UTC(),
		Status:         entity.StatusSent,
	}

	if input.ReplyToMessageID != nil {
		replyTo := *input.ReplyToMessageID
		message.ReplyToMessageID = &replyTo
		for _, m := range ledger {
			if m.ID == replyTo {
				message.RepliedMessage = m.Preview()
				break
			}
		}
	}

	if err := uc.conversationRepo.AppendToLedger(ctx, input.ConversationID, message); err != nil {
		logger.LogPersistenceError(key, "append:store", err)
		return nil, err
	}

	uc.metrics.MessageAppended(message.SenderRole)
	logger.Debug("Ledger: appended message %d to conversation %s (role=%s)", message.ID, key, message.SenderRole)

	if input.OnAppended != nil {
		input.OnAppended(message.Clone())
	}

	return message.Clone(), nil
}

// ListByConversation returns the ledger in insertion order, or an empty slice.
func (uc *LedgerUseCase) ListByConversation(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	ledger, err := uc.conversationRepo.GetLedger(ctx, id)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = []*entity.Message{}
	}
	return ledger, nil
}

// SetStatus moves every message matching predicate forward to newStatus. A
// message already at or beyond newStatus is left untouched, and the ledger is
// persisted only when something changed. It returns the number of messages
// rewritten.
func (uc *LedgerUseCase) SetStatus(ctx context.Context, id entity.ConversationID, predicate func(*entity.Message) bool, newStatus entity.MessageStatus) (int, error) {
	if newStatus.Rank() == 0 {
		return 0, errors.BadRequest("Unknown message status", nil)
	}

	key := id.String()
	unlock := uc.locks.lock(key)
	defer unlock()

	ledger, err := uc.conversationRepo.GetLedger(ctx, id)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, m := range ledger {
		if predicate(m) && m.Status.Rank() < newStatus.Rank() {
			m.Status = newStatus
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}

	if err := uc.conversationRepo.OverwriteLedger(ctx, id, ledger); err != nil {
		return 0, err
	}

	uc.metrics.ReceiptsUpdated(newStatus, changed)
	logger.Debug("Ledger: %d message(s) in conversation %s moved to %s", changed, key, newStatus)

	return changed, nil
}

// MarkDelivered marks messages addressed to deliverTo as delivered.
func (uc *LedgerUseCase) MarkDelivered(ctx context.Context, id entity.ConversationID, deliverTo entity.Role) (int, error) {
	return uc.SetStatus(ctx, id, addressedTo(deliverTo), entity.StatusDelivered)
}

// MarkRead marks messages addressed to reader as read.
func (uc *LedgerUseCase) MarkRead(ctx context.Context, id entity.ConversationID, reader entity.Role) (int, error) {
	return uc.SetStatus(ctx, id, addressedTo(reader), entity.StatusRead)
}

// HasSupportReply reports whether support ever authored a message in the conversation.
func (uc *LedgerUseCase) HasSupportReply(ctx context.Context, id entity.ConversationID) (bool, error) {
	ledger, err := uc.conversationRepo.GetLedger(ctx, id)
	if err != nil {
		return false, err
	}
	for _, m := range ledger {
		if m.SenderRole.IsSupport() {
			return true, nil
		}
	}
	return false, nil
}

func addressedTo(reader entity.Role) func(*entity.Message) bool {
	return func(m *entity.Message) bool {
		return m.AddressedTo(reader)
	}
}
