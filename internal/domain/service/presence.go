package service

import (
	"context"

	"helpdesk/internal/domain/entity"
)

// PresenceTracker maps live connections to the conversation they are viewing
// and keeps the ephemeral typing set. Only non-support connections count
// towards a conversation being online.
type PresenceTracker interface {
	// Join drops any previous association of connID and records the new one
	// unless role is support. changed reports whether the association map moved.
	Join(ctx context.Context, connID string, id entity.ConversationID, role entity.Role) (changed bool, err error)
	Leave(ctx context.Context, connID string) (changed bool, err error)
	IsOnline(ctx context.Context, id entity.ConversationID) (bool, error)
	// Online prunes associations whose connection is no longer live and returns
	// the distinct, sorted set of online conversation ids.
	Online(ctx context.Context, isLive func(connID string) bool) ([]string, error)

	SetTyping(ctx context.Context, id entity.ConversationID, typing bool) error
	IsTyping(ctx context.Context, id entity.ConversationID) (bool, error)
}
