package usecase

import (
	"context"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/pkg/config"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/logger"
)

// ChatUseCase is the send/receipt/status pipeline shared by the REST surface
// and the auto-reply job: commit to the ledger, republish, then dispatch.
type ChatUseCase struct {
	ledger           *LedgerUseCase
	conversationRepo repository.ConversationRepository
	publisher        RealtimePublisher
	notifier         *NotificationUseCase
	autoReply        config.AutoReplyConfig
	metrics          *metrics.Metrics
	now              func() time.Time
}

func NewChatUseCase(
	ledger *LedgerUseCase,
	conversationRepo repository.ConversationRepository,
	publisher RealtimePublisher,
	notifier *NotificationUseCase,
	autoReply config.AutoReplyConfig,
	m *metrics.Metrics,
) *ChatUseCase {
	return &ChatUseCase{
		ledger:           ledger,
		conversationRepo: conversationRepo,
		publisher:        publisher,
		notifier:         notifier,
		autoReply:        autoReply,
		metrics:          m,
		now:              time.Now,
	}
}

type SendMessageInput struct {
	ConversationID   entity.ConversationID
	SenderRole       entity.Role
	Text             string
	ImageURL         string
	VideoURL         string
	ReplyToMessageID *int64
}

// SendMessage appends the message, emits new-message to the conversation room
// and the support room, then runs the notification dispatcher. The broadcast
// happens under the ledger lock so new-message order matches ledger order.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	message, err := uc.ledger.Append(ctx, AppendInput{
		ConversationID: input.ConversationID,
		SenderRole:     input.SenderRole,
		Content: entity.MessageContent{
			Text:     input.Text,
			ImageURL: input.ImageURL,
			VideoURL: input.VideoURL,
		},
		ReplyToMessageID: input.ReplyToMessageID,
		OnAppended:       uc.publisher.PublishNewMessage,
	})
	if err != nil {
		if errors.Is(err, "BAD_REQUEST") {
			return nil, err
		}
		return nil, errors.Internal("Failed to save message", err)
	}

	if uc.notifier != nil {
		uc.notifier.Dispatch(ctx, input.ConversationID, message)
	}

	return message, nil
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	messages, err := uc.ledger.ListByConversation(ctx, id)
	if err != nil {
		return nil, errors.Internal("Failed to load messages", err)
	}
	return messages, nil
}

// MarkDelivered broadcasts the receipt before persisting it. A persistence
// failure is returned but the broadcast is not retracted.
func (uc *ChatUseCase) MarkDelivered(ctx context.Context, id entity.ConversationID, deliverTo entity.Role) (int, error) {
	uc.publisher.PublishReceipts(id, entity.StatusDelivered, deliverTo)

	changed, err := uc.ledger.MarkDelivered(ctx, id, deliverTo)
	if err != nil {
		logger.LogPersistenceError(id.String(), "mark-delivered", err)
		return 0, errors.Internal("Failed to update delivery status", err)
	}
	return changed, nil
}

// MarkRead broadcasts the receipt before persisting it.
func (uc *ChatUseCase) MarkRead(ctx context.Context, id entity.ConversationID, reader entity.Role) (int, error) {
	uc.publisher.PublishReceipts(id, entity.StatusRead, reader)

	changed, err := uc.ledger.MarkRead(ctx, id, reader)
	if err != nil {
		logger.LogPersistenceError(id.String(), "mark-read", err)
		return 0, errors.Internal("Failed to update read status", err)
	}
	return changed, nil
}

// UpdateStatus stores the workflow status and notifies the room and support.
func (uc *ChatUseCase) UpdateStatus(ctx context.Context, id entity.ConversationID, status entity.ConversationStatus) error {
	if err := uc.conversationRepo.UpdateStatus(ctx, id, status); err != nil {
		return errors.Internal("Failed to update conversation status", err)
	}
	uc.publisher.PublishConversationStatus(id, status)
	logger.Info("Conversation %s status changed to %s", id, status)
	return nil
}

// HandleAutoReply is the scheduler callback. It re-checks the ledger when the
// job fires and does nothing if support has replied in the meantime.
func (uc *ChatUseCase) HandleAutoReply(ctx context.Context, id entity.ConversationID) error {
	replied, err := uc.ledger.HasSupportReply(ctx, id)
	if err != nil {
		uc.metrics.AutoReply("failed")
		return err
	}
	if replied {
		uc.metrics.AutoReply("suppressed")
		logger.Debug("Auto-reply for conversation %s suppressed, support already replied", id)
		return nil
	}

	if _, err := uc.SendMessage(ctx, SendMessageInput{
		ConversationID: id,
		SenderRole:     entity.RoleSupport,
		Text:           uc.autoReply.Text(uc.now()),
	}); err != nil {
		uc.metrics.AutoReply("failed")
		return err
	}

	uc.metrics.AutoReply("sent")
	return nil
}
