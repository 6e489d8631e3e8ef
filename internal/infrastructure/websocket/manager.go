package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/internal/infrastructure/ratelimit"
	"helpdesk/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	writeWait      = 10 * time.Second
	sendBuffer     = 256
	eventAction    = "ws_event"
)

// ReceiptMarker persists delivery and read receipts.
type ReceiptMarker interface {
	MarkDelivered(ctx context.Context, id entity.ConversationID, deliverTo entity.Role) (int, error)
	MarkRead(ctx context.Context, id entity.ConversationID, reader entity.Role) (int, error)
}

type Config struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	EventsPerSecond float64
	EventBurst      int
}

// Client is one live connection. Room membership fields are guarded by the
// manager's mutex.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	conversation string
	support      bool
	closed       bool
}

// Manager owns every connection, the per-conversation rooms and the global
// support room. Broadcasts take the manager lock exclusively, so every member
// of a room observes events in the same order.
type Manager struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	support    map[string]*Client
	Unregister chan *Client
	mutex      sync.RWMutex

	receipts ReceiptMarker
	presence service.PresenceTracker
	limiter  *ratelimit.RateLimiter
	metrics  *metrics.Metrics
	cfg      Config

	ctx     context.Context
	pending sync.WaitGroup
}

func NewManager(receipts ReceiptMarker, presence service.PresenceTracker, limiter *ratelimit.RateLimiter, m *metrics.Metrics, cfg Config) *Manager {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10 * time.Second
	}
	if cfg.EventsPerSecond > 0 && cfg.EventBurst > 0 {
		limiter.SetLimit(eventAction, ratelimit.Limit{Rate: rate.Limit(cfg.EventsPerSecond), Burst: cfg.EventBurst})
	}

	return &Manager{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		support:    make(map[string]*Client),
		Unregister: make(chan *Client),
		receipts:   receipts,
		presence:   presence,
		limiter:    limiter,
		metrics:    m,
		cfg:        cfg,
		ctx:        context.Background(),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	go func() {
		for {
			select {
			case client := <-m.Unregister:
				m.disconnect(client)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// ServeConn registers an upgraded connection and starts its pumps.
func (m *Manager) ServeConn(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}

	m.mutex.Lock()
	m.clients[client.ID] = client
	m.mutex.Unlock()

	m.metrics.ConnectionOpened()
	logger.Debug("WebSocket: client registered: %s", client.ID)

	go client.WritePump(m.cfg.PingInterval)
	go client.ReadPump(m)

	return client
}

func (m *Manager) disconnect(client *Client) {
	m.mutex.Lock()
	m.removeLocked(client)
	m.mutex.Unlock()

	m.limiter.Forget(client.ID, eventAction)
	m.limiter.Forget(client.ID, ratelimit.ActionTyping)

	if _, err := m.presence.Leave(m.ctx, client.ID); err != nil {
		logger.Warn("WebSocket: presence leave failed for %s: %v", client.ID, err)
	}
	m.broadcastOnlineUsers()

	logger.Debug("WebSocket: client unregistered: %s", client.ID)
}

// removeLocked detaches a client from every room and closes its send queue.
func (m *Manager) removeLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true

	delete(m.clients, client.ID)
	m.leaveRoomLocked(client)
	delete(m.support, client.ID)
	close(client.Send)

	m.metrics.ConnectionClosed()
}

func (m *Manager) joinRoomLocked(client *Client, room string) {
	m.leaveRoomLocked(client)

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[room] = members
	}
	members[client.ID] = client
	client.conversation = room
}

func (m *Manager) leaveRoomLocked(client *Client) {
	if client.conversation == "" {
		return
	}
	if members, ok := m.rooms[client.conversation]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(m.rooms, client.conversation)
		}
	}
	client.conversation = ""
}

// isLive reports whether connID is still registered; presence uses it to prune.
func (m *Manager) isLive(connID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.clients[connID]
	return ok
}

// OnlineConversations prunes dead associations and lists conversations with
// a live non-support connection.
func (m *Manager) OnlineConversations(ctx context.Context) ([]string, error) {
	ids, err := m.presence.Online(ctx, m.isLive)
	if err != nil {
		return nil, err
	}
	m.metrics.OnlineConversations(len(ids))
	return ids, nil
}

// ClientCount returns the number of registered connections.
func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// broadcast encodes msg once and queues it for every member of rooms, the
// support room when toSupport is set, minus exclude. A client that belongs to
// several targets receives the event once.
func (m *Manager) broadcast(msg WSMessage, rooms []string, toSupport bool, exclude *Client) {
	data, err := encode(msg)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", msg.Type, err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	seen := make(map[string]struct{})
	deliver := func(c *Client) {
		if c == exclude {
			return
		}
		if _, dup := seen[c.ID]; dup {
			return
		}
		seen[c.ID] = struct{}{}
		m.deliverLocked(c, data)
	}

	for _, room := range rooms {
		for _, c := range m.rooms[room] {
			deliver(c)
		}
	}
	if toSupport {
		for _, c := range m.support {
			deliver(c)
		}
	}
}

func (m *Manager) sendToClient(client *Client, msg WSMessage) {
	data, err := encode(msg)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", msg.Type, err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.deliverLocked(client, data)
}

// deliverLocked never blocks; a client whose queue is full is dropped.
func (m *Manager) deliverLocked(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.Send <- data:
	default:
		logger.Warn("WebSocket: dropping slow client %s", client.ID)
		m.removeLocked(client)
	}
}

func (m *Manager) broadcastOnlineUsers() {
	ids, err := m.OnlineConversations(m.ctx)
	if err != nil {
		logger.Error("WebSocket: failed to list online conversations: %v", err)
		return
	}
	m.broadcast(newMessage(EventOnlineUsers, ids), nil, true, nil)
}

// runAsync performs a store update off the read loop. Shutdown waits for it.
func (m *Manager) runAsync(fn func(ctx context.Context)) {
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		fn(context.WithoutCancel(m.ctx))
	}()
}

// Shutdown closes every connection and waits for in-flight receipt updates.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	for _, c := range m.clients {
		c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		m.removeLocked(c)
	}
	m.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(msg WSMessage) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.ctx.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error from %s: %v", c.ID, err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))

		m.HandleClientMessage(c, message)
	}
}

// WritePump sends queued messages and keeps the connection alive with pings.
func (c *Client) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
