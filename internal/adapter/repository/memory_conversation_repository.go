package repository

import (
	"context"
	"sync"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
)

type memoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
}

// NewMemoryConversationRepository keeps conversation documents in process
// memory. Reads and writes copy the ledger so callers never share state with
// the store.
func NewMemoryConversationRepository() repository.ConversationRepository {
	return &memoryConversationRepository{
		conversations: make(map[string]*entity.Conversation),
	}
}

func (r *memoryConversationRepository) GetLedger(ctx context.Context, id entity.ConversationID) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id.String()]
	if !ok {
		return []*entity.Message{}, nil
	}
	return entity.CloneLedger(conv.Messages), nil
}

func (r *memoryConversationRepository) AppendToLedger(ctx context.Context, id entity.ConversationID, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := r.getOrCreateLocked(id)
	conv.Messages = append(conv.Messages, message.Clone())
	conv.UpdatedAt = time.Now()
	return nil
}

func (r *memoryConversationRepository) OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := r.getOrCreateLocked(id)
	if entity.MergeStatuses(conv.Messages, ledger) > 0 {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryConversationRepository) UpdateStatus(ctx context.Context, id entity.ConversationID, status entity.ConversationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := r.getOrCreateLocked(id)
	conv.Status = status
	conv.UpdatedAt = time.Now()
	return nil
}

func (r *memoryConversationRepository) getOrCreateLocked(id entity.ConversationID) *entity.Conversation {
	key := id.String()
	conv, ok := r.conversations[key]
	if !ok {
		conv = &entity.Conversation{ID: key, Status: entity.ConversationPending}
		r.conversations[key] = conv
	}
	return conv
}
