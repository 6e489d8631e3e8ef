package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"helpdesk/internal/domain/entity"
)

const (
	connectionsKey = "presence:connections"
	typingKey      = "presence:typing"
)

// RedisTracker shares presence between instances. Each association is a hash
// field "<instance>/<connID>"; an instance only ever prunes its own fields,
// since it cannot judge the liveness of a peer's connections.
type RedisTracker struct {
	client   redis.UniversalClient
	instance string
}

func NewRedisTracker(client redis.UniversalClient, instanceID string) *RedisTracker {
	return &RedisTracker{client: client, instance: instanceID}
}

func (t *RedisTracker) field(connID string) string {
	return t.instance + "/" + connID
}

func (t *RedisTracker) Join(ctx context.Context, connID string, id entity.ConversationID, role entity.Role) (bool, error) {
	field := t.field(connID)

	prev, err := t.client.HGet(ctx, connectionsKey, field).Result()
	had := true
	if errors.Is(err, redis.Nil) {
		had = false
	} else if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}

	if role.IsSupport() {
		if !had {
			return false, nil
		}
		if err := t.client.HDel(ctx, connectionsKey, field).Err(); err != nil {
			return false, fmt.Errorf("presence leave: %w", err)
		}
		return true, nil
	}

	key := id.String()
	if err := t.client.HSet(ctx, connectionsKey, field, key).Err(); err != nil {
		return false, fmt.Errorf("presence join: %w", err)
	}
	return !had || prev != key, nil
}

func (t *RedisTracker) Leave(ctx context.Context, connID string) (bool, error) {
	n, err := t.client.HDel(ctx, connectionsKey, t.field(connID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence leave: %w", err)
	}
	return n > 0, nil
}

func (t *RedisTracker) IsOnline(ctx context.Context, id entity.ConversationID) (bool, error) {
	values, err := t.client.HVals(ctx, connectionsKey).Result()
	if err != nil {
		return false, fmt.Errorf("presence scan: %w", err)
	}
	key := id.String()
	for _, v := range values {
		if v == key {
			return true, nil
		}
	}
	return false, nil
}

func (t *RedisTracker) Online(ctx context.Context, isLive func(connID string) bool) ([]string, error) {
	all, err := t.client.HGetAll(ctx, connectionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence scan: %w", err)
	}

	prefix := t.instance + "/"
	var dead []string
	seen := make(map[string]struct{})
	for field, conv := range all {
		if connID, ours := strings.CutPrefix(field, prefix); ours && isLive != nil && !isLive(connID) {
			dead = append(dead, field)
			continue
		}
		seen[conv] = struct{}{}
	}

	if len(dead) > 0 {
		if err := t.client.HDel(ctx, connectionsKey, dead...).Err(); err != nil {
			return nil, fmt.Errorf("presence prune: %w", err)
		}
	}
	return sortedKeys(seen), nil
}

func (t *RedisTracker) SetTyping(ctx context.Context, id entity.ConversationID, typing bool) error {
	var err error
	if typing {
		err = t.client.SAdd(ctx, typingKey, id.String()).Err()
	} else {
		err = t.client.SRem(ctx, typingKey, id.String()).Err()
	}
	if err != nil {
		return fmt.Errorf("typing update: %w", err)
	}
	return nil
}

func (t *RedisTracker) IsTyping(ctx context.Context, id entity.ConversationID) (bool, error) {
	ok, err := t.client.SIsMember(ctx, typingKey, id.String()).Result()
	if err != nil {
		return false, fmt.Errorf("typing lookup: %w", err)
	}
	return ok, nil
}

// Close drops every association owned by this instance. Called on shutdown so
// peers do not report its connections as online.
func (t *RedisTracker) Close(ctx context.Context) error {
	fields, err := t.client.HKeys(ctx, connectionsKey).Result()
	if err != nil {
		return err
	}
	prefix := t.instance + "/"
	var ours []string
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			ours = append(ours, f)
		}
	}
	if len(ours) == 0 {
		return nil
	}
	return t.client.HDel(ctx, connectionsKey, ours...).Err()
}
