package presence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

func trackers(t *testing.T) map[string]service.PresenceTracker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]service.PresenceTracker{
		"memory": NewMemoryTracker(),
		"redis":  NewRedisTracker(client, "node-a"),
	}
}

func TestJoinLeave(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := entity.ComplaintConversation(1)

			changed, err := tracker.Join(ctx, "c1", id, entity.RoleCustomer)
			require.NoError(t, err)
			assert.True(t, changed)

			changed, err = tracker.Join(ctx, "c1", id, entity.RoleCustomer)
			require.NoError(t, err)
			assert.False(t, changed)

			online, err := tracker.IsOnline(ctx, id)
			require.NoError(t, err)
			assert.True(t, online)

			changed, err = tracker.Leave(ctx, "c1")
			require.NoError(t, err)
			assert.True(t, changed)

			online, err = tracker.IsOnline(ctx, id)
			require.NoError(t, err)
			assert.False(t, online)

			changed, err = tracker.Leave(ctx, "c1")
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}
}

func TestSupportNeverCountsAsOnline(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := entity.ComplaintConversation(2)

			changed, err := tracker.Join(ctx, "agent", id, entity.RoleSupport)
			require.NoError(t, err)
			assert.False(t, changed)

			online, err := tracker.IsOnline(ctx, id)
			require.NoError(t, err)
			assert.False(t, online)
		})
	}
}

func TestRejoinMovesConnection(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := entity.ComplaintConversation(3)
			second := entity.EmployeeThread("3")

			_, err := tracker.Join(ctx, "c1", first, entity.RoleCustomer)
			require.NoError(t, err)
			changed, err := tracker.Join(ctx, "c1", second, entity.RoleEmployee)
			require.NoError(t, err)
			assert.True(t, changed)

			ids, err := tracker.Online(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"EMP_3"}, ids)
		})
	}
}

func TestOnlinePrunesDeadConnections(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := tracker.Join(ctx, "alive", entity.ComplaintConversation(10), entity.RoleCustomer)
			require.NoError(t, err)
			_, err = tracker.Join(ctx, "alive-too", entity.ComplaintConversation(10), entity.RoleCustomer)
			require.NoError(t, err)
			_, err = tracker.Join(ctx, "dead", entity.ComplaintConversation(11), entity.RoleCustomer)
			require.NoError(t, err)

			isLive := func(connID string) bool { return connID != "dead" }

			ids, err := tracker.Online(ctx, isLive)
			require.NoError(t, err)
			assert.Equal(t, []string{"10"}, ids)

			online, err := tracker.IsOnline(ctx, entity.ComplaintConversation(11))
			require.NoError(t, err)
			assert.False(t, online)
		})
	}
}

func TestTyping(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := entity.ComplaintConversation(4)

			require.NoError(t, tracker.SetTyping(ctx, id, true))
			typing, err := tracker.IsTyping(ctx, id)
			require.NoError(t, err)
			assert.True(t, typing)

			require.NoError(t, tracker.SetTyping(ctx, id, false))
			typing, err = tracker.IsTyping(ctx, id)
			require.NoError(t, err)
			assert.False(t, typing)
		})
	}
}

func TestRedisPruneLeavesPeerConnections(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	nodeA := NewRedisTracker(client, "node-a")
	nodeB := NewRedisTracker(client, "node-b")

	_, err := nodeA.Join(ctx, "c1", entity.ComplaintConversation(1), entity.RoleCustomer)
	require.NoError(t, err)
	_, err = nodeB.Join(ctx, "c2", entity.ComplaintConversation(2), entity.RoleCustomer)
	require.NoError(t, err)

	ids, err := nodeA.Online(ctx, func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)

	require.NoError(t, nodeB.Close(ctx))
	ids, err = nodeA.Online(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
