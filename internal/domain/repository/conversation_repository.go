package repository

import (
	"context"

	"helpdesk/internal/domain/entity"
)

// ConversationRepository is the record store holding one document per
// conversation with its embedded message ledger. A missing conversation reads
// as an empty ledger and writes create the record.
type ConversationRepository interface {
	GetLedger(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error)
	AppendToLedger(ctx context.Context, id entity.ConversationID, message *entity.Message) error
	// OverwriteLedger persists the statuses carried by ledger. Messages stored
	// since ledger was read are preserved and no status moves backwards, so a
	// stale snapshot from another instance cannot drop an append.
	OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error
	UpdateStatus(ctx context.Context, id entity.ConversationID, status entity.ConversationStatus) error
}
