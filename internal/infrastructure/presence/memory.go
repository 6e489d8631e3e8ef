package presence

import (
	"context"
	"sort"
	"sync"

	"helpdesk/internal/domain/entity"
)

// MemoryTracker keeps presence for a single process.
type MemoryTracker struct {
	mu     sync.RWMutex
	conns  map[string]string
	typing map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		conns:  make(map[string]string),
		typing: make(map[string]struct{}),
	}
}

func (t *MemoryTracker) Join(ctx context.Context, connID string, id entity.ConversationID, role entity.Role) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, had := t.conns[connID]
	delete(t.conns, connID)

	if role.IsSupport() {
		return had, nil
	}

	key := id.String()
	t.conns[connID] = key
	return !had || prev != key, nil
}

func (t *MemoryTracker) Leave(ctx context.Context, connID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, had := t.conns[connID]
	delete(t.conns, connID)
	return had, nil
}

func (t *MemoryTracker) IsOnline(ctx context.Context, id entity.ConversationID) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := id.String()
	for _, conv := range t.conns {
		if conv == key {
			return true, nil
		}
	}
	return false, nil
}

func (t *MemoryTracker) Online(ctx context.Context, isLive func(connID string) bool) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{})
	for connID, conv := range t.conns {
		if isLive != nil && !isLive(connID) {
			delete(t.conns, connID)
			continue
		}
		seen[conv] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (t *MemoryTracker) SetTyping(ctx context.Context, id entity.ConversationID, typing bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if typing {
		t.typing[id.String()] = struct{}{}
	} else {
		delete(t.typing, id.String())
	}
	return nil
}

func (t *MemoryTracker) IsTyping(ctx context.Context, id entity.ConversationID) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.typing[id.String()]
	return ok, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
