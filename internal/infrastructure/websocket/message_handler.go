package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/infrastructure/ratelimit"
	"helpdesk/pkg/logger"
)

// Inbound event types
const (
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventJoinSupport       = "join-support"
	EventTyping            = "typing"
	EventStopTyping        = "stop-typing"
	EventMarkDelivered     = "mark-delivered"
	EventMarkRead          = "mark-read"
	EventPing              = "ping"
)

// Outbound event types
const (
	EventNewMessage                = "new-message"
	EventOnlineUsers               = "online-users"
	EventMessagesMarkedRead        = "messages-marked-read"
	EventMessagesMarkedDelivered   = "messages-marked-delivered"
	EventStatusUpdated             = "status-updated"
	EventConversationStatusChanged = "conversation-status-changed"
	EventPong                      = "pong"
	EventError                     = "error"
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConversationPayload is the body of every conversation-scoped event. Clients
// may also send a bare conversation id instead of an object.
type ConversationPayload struct {
	ConversationID entity.ConversationID `json:"conversation_id"`
	Role           string                `json:"role,omitempty" validate:"omitempty,oneof=customer user support admin employee"`
	DeliverToRole  string                `json:"deliver_to_role,omitempty" validate:"omitempty,oneof=customer user support admin employee"`
	ReaderRole     string                `json:"reader_role,omitempty" validate:"omitempty,oneof=customer user support admin employee"`
}

type TypingData struct {
	ConversationID entity.ConversationID `json:"conversation_id"`
	Role           entity.Role           `json:"role,omitempty"`
}

type ReceiptData struct {
	ConversationID entity.ConversationID `json:"conversation_id"`
	DeliverToRole  entity.Role           `json:"deliver_to_role,omitempty"`
	ReaderRole     entity.Role           `json:"reader_role,omitempty"`
}

type StatusData struct {
	ConversationID entity.ConversationID     `json:"conversation_id"`
	Status         entity.ConversationStatus `json:"status"`
}

type ErrorData struct {
	Message string `json:"message"`
}

var validate = validator.New()

func newMessage(eventType string, data interface{}) WSMessage {
	return WSMessage{Type: eventType, Data: data}
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil || msg.Type == "" {
		logger.Warn("WebSocket: malformed frame from client %s: %v", client.ID, err)
		m.metrics.Event("unknown", "malformed")
		m.sendError(client, "Invalid message format")
		return
	}

	if msg.Type != EventPing {
		if allowed, _ := m.limiter.Allow(client.ID, eventAction); !allowed {
			m.metrics.Event(msg.Type, "throttled")
			m.sendError(client, "Too many events")
			return
		}
	}

	var err error
	switch msg.Type {
	case EventPing:
		m.sendToClient(client, newMessage(EventPong, map[string]string{"status": "alive"}))

	case EventJoinConversation:
		err = m.handleJoinConversation(client, msg.Data)

	case EventLeaveConversation:
		m.handleLeaveConversation(client)

	case EventJoinSupport:
		m.handleJoinSupport(client)

	case EventTyping, EventStopTyping:
		err = m.handleTyping(client, msg.Type, msg.Data)

	case EventMarkDelivered:
		err = m.handleMarkDelivered(client, msg.Data)

	case EventMarkRead:
		err = m.handleMarkRead(client, msg.Data)

	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		logger.Warn("WebSocket: rejected %s from client %s: %v", msg.Type, client.ID, err)
		m.metrics.Event(msg.Type, "rejected")
		m.sendError(client, err.Error())
		return
	}
	m.metrics.Event(msg.Type, "ok")
}

func (m *Manager) handleJoinConversation(client *Client, data json.RawMessage) error {
	payload, err := decodeConversationPayload(data)
	if err != nil {
		return err
	}
	role, err := roleOrDefault(payload.Role, entity.RoleCustomer)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	if client.closed {
		m.mutex.Unlock()
		return nil
	}
	m.joinRoomLocked(client, payload.ConversationID.String())
	m.mutex.Unlock()

	changed, err := m.presence.Join(m.ctx, client.ID, payload.ConversationID, role)
	if err != nil {
		logger.Error("WebSocket: presence join failed for %s: %v", client.ID, err)
	}

	logger.Debug("WebSocket: client %s joined conversation %s as %s", client.ID, payload.ConversationID, role)

	// A peer who started typing before this join is replayed to the joiner.
	if typing, err := m.presence.IsTyping(m.ctx, payload.ConversationID); err != nil {
		logger.Warn("WebSocket: typing lookup failed for %s: %v", payload.ConversationID, err)
	} else if typing {
		m.sendToClient(client, newMessage(EventTyping, TypingData{ConversationID: payload.ConversationID}))
	}

	if !role.IsSupport() || changed {
		m.broadcastOnlineUsers()
	}
	return nil
}

func (m *Manager) handleLeaveConversation(client *Client) {
	m.mutex.Lock()
	m.leaveRoomLocked(client)
	m.mutex.Unlock()

	changed, err := m.presence.Leave(m.ctx, client.ID)
	if err != nil {
		logger.Error("WebSocket: presence leave failed for %s: %v", client.ID, err)
	}
	if changed {
		m.broadcastOnlineUsers()
	}
}

func (m *Manager) handleJoinSupport(client *Client) {
	m.mutex.Lock()
	if !client.closed {
		m.support[client.ID] = client
		client.support = true
	}
	m.mutex.Unlock()

	m.broadcastOnlineUsers()
}

func (m *Manager) handleTyping(client *Client, eventType string, data json.RawMessage) error {
	payload, err := decodeConversationPayload(data)
	if err != nil {
		return err
	}
	role, err := roleOrDefault(payload.Role, entity.RoleCustomer)
	if err != nil {
		return err
	}

	typing := eventType == EventTyping
	// Only start signals are budgeted; a dropped stop-typing would leave the
	// indicator stuck for peers.
	if typing {
		if allowed, _ := m.limiter.Allow(client.ID, ratelimit.ActionTyping); !allowed {
			return nil
		}
	}

	if err := m.presence.SetTyping(m.ctx, payload.ConversationID, typing); err != nil {
		logger.Warn("WebSocket: typing update failed for %s: %v", payload.ConversationID, err)
	}

	m.broadcast(newMessage(eventType, TypingData{
		ConversationID: payload.ConversationID,
		Role:           role,
	}), []string{payload.ConversationID.String()}, false, client)
	return nil
}

// handleMarkDelivered tells the room first and persists afterwards. A store
// failure is logged and the broadcast stands.
func (m *Manager) handleMarkDelivered(client *Client, data json.RawMessage) error {
	payload, err := decodeConversationPayload(data)
	if err != nil {
		return err
	}
	deliverTo, err := entity.ParseRole(payload.DeliverToRole)
	if err != nil {
		return fmt.Errorf("deliver_to_role: %w", err)
	}

	id := payload.ConversationID
	m.PublishReceipts(id, entity.StatusDelivered, deliverTo)

	m.runAsync(func(ctx context.Context) {
		if _, err := m.receipts.MarkDelivered(ctx, id, deliverTo); err != nil {
			logger.LogPersistenceError(id.String(), "mark-delivered", err)
		}
	})
	return nil
}

func (m *Manager) handleMarkRead(client *Client, data json.RawMessage) error {
	payload, err := decodeConversationPayload(data)
	if err != nil {
		return err
	}
	reader, err := entity.ParseRole(payload.ReaderRole)
	if err != nil {
		return fmt.Errorf("reader_role: %w", err)
	}

	id := payload.ConversationID
	m.PublishReceipts(id, entity.StatusRead, reader)

	m.runAsync(func(ctx context.Context) {
		if _, err := m.receipts.MarkRead(ctx, id, reader); err != nil {
			logger.LogPersistenceError(id.String(), "mark-read", err)
		}
	})
	return nil
}

func (m *Manager) sendError(client *Client, message string) {
	m.sendToClient(client, newMessage(EventError, ErrorData{Message: message}))
}

// PublishNewMessage sends new-message to the conversation room and the
// support room.
func (m *Manager) PublishNewMessage(message *entity.Message) {
	m.broadcast(newMessage(EventNewMessage, message), []string{message.ConversationID}, true, nil)
}

// PublishReceipts announces a bulk receipt transition to the conversation room.
func (m *Manager) PublishReceipts(id entity.ConversationID, status entity.MessageStatus, role entity.Role) {
	data := ReceiptData{ConversationID: id}
	eventType := EventMessagesMarkedDelivered
	if status == entity.StatusRead {
		eventType = EventMessagesMarkedRead
		data.ReaderRole = role
	} else {
		data.DeliverToRole = role
	}
	m.broadcast(newMessage(eventType, data), []string{id.String()}, false, nil)
}

// PublishConversationStatus notifies the room and the support dashboard.
func (m *Manager) PublishConversationStatus(id entity.ConversationID, status entity.ConversationStatus) {
	data := StatusData{ConversationID: id, Status: status}
	m.broadcast(newMessage(EventStatusUpdated, data), []string{id.String()}, false, nil)
	m.broadcast(newMessage(EventConversationStatusChanged, data), nil, true, nil)
}

func decodeConversationPayload(data json.RawMessage) (ConversationPayload, error) {
	var payload ConversationPayload

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return payload, fmt.Errorf("conversation_id is required")
	}

	if data[0] == '{' {
		if err := json.Unmarshal(data, &payload); err != nil {
			return payload, fmt.Errorf("invalid payload: %w", err)
		}
	} else if err := json.Unmarshal(data, &payload.ConversationID); err != nil {
		return payload, fmt.Errorf("invalid conversation id: %w", err)
	}

	if payload.ConversationID.IsZero() {
		return payload, fmt.Errorf("conversation_id is required")
	}
	if err := validate.Struct(payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func roleOrDefault(raw string, fallback entity.Role) (entity.Role, error) {
	if raw == "" {
		return fallback, nil
	}
	return entity.ParseRole(raw)
}
