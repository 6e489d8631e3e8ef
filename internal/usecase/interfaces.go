package usecase

import "helpdesk/internal/domain/entity"

// RealtimePublisher republishes committed state changes to live connections.
// The websocket manager is the production implementation.
type RealtimePublisher interface {
	PublishNewMessage(message *entity.Message)
	PublishReceipts(id entity.ConversationID, status entity.MessageStatus, role entity.Role)
	PublishConversationStatus(id entity.ConversationID, status entity.ConversationStatus)
}
