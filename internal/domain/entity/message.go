package entity

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupport  Role = "support"
	RoleEmployee Role = "employee"
)

// ParseRole canonicalizes client role strings. "admin" is a historical alias
// of support and "user" is how customer clients identify themselves.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer", "user":
		return RoleCustomer, nil
	case "support", "admin":
		return RoleSupport, nil
	case "employee":
		return RoleEmployee, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

func (r Role) IsSupport() bool {
	return r == RoleSupport || r == "admin"
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders receipt states; transitions only ever move to a higher rank.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// ReplyPreview is a snapshot of the quoted message taken at append time.
type ReplyPreview struct {
	ID         int64  `json:"id" firestore:"id" bson:"id"`
	Text       string `json:"text" firestore:"text" bson:"text"`
	SenderRole Role   `json:"sender_role" firestore:"senderRole" bson:"senderRole"`
}

type Message struct {
	ID               int64         `json:"id" firestore:"id" bson:"id"`
	ConversationID   string        `json:"conversation_id" firestore:"conversationId" bson:"conversationId"`
	SenderRole       Role          `json:"sender_role" firestore:"senderRole" bson:"senderRole"`
	Text             string        `json:"text,omitempty" firestore:"text,omitempty" bson:"text,omitempty"`
	ImageURL         string        `json:"image_url,omitempty" firestore:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	VideoURL         string        `json:"video_url,omitempty" firestore:"videoUrl,omitempty" bson:"videoUrl,omitempty"`
	ReplyToMessageID *int64        `json:"reply_to_message_id" firestore:"replyToMessageId" bson:"replyToMessageId"`
	RepliedMessage   *ReplyPreview `json:"replied_message" firestore:"repliedMessage" bson:"repliedMessage"`
	CreatedAt        time.Time     `json:"created_at" firestore:"createdAt" bson:"createdAt"`
	Status           MessageStatus `json:"status" firestore:"status" bson:"status"`
}

// MessageContent is the caller-supplied body of a new message.
type MessageContent struct {
	Text     string
	ImageURL string
	VideoURL string
}

func (c MessageContent) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && c.ImageURL == "" && c.VideoURL == ""
}

// AddressedTo reports whether the message is directed at readers of the given
// role: support-authored messages target external readers and everything else
// targets support.
func (m *Message) AddressedTo(reader Role) bool {
	return m.SenderRole.IsSupport() != reader.IsSupport()
}

// Preview builds the quoted snapshot used by replies.
func (m *Message) Preview() *ReplyPreview {
	text := m.Text
	if text == "" {
		text = "Media"
	}
	return &ReplyPreview{ID: m.ID, Text: text, SenderRole: m.SenderRole}
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ReplyToMessageID != nil {
		id := *m.ReplyToMessageID
		cp.ReplyToMessageID = &id
	}
	if m.RepliedMessage != nil {
		preview := *m.RepliedMessage
		cp.RepliedMessage = &preview
	}
	return &cp
}

// CloneLedger deep-copies a ledger so callers cannot mutate store state.
func CloneLedger(ledger []*Message) []*Message {
	out := make([]*Message, 0, len(ledger))
	for _, m := range ledger {
		out = append(out, m.Clone())
	}
	return out
}

// MergeStatuses raises the status of each message in current to the status of
// the message with the same id in updates, when that ranks higher. Messages
// absent from updates are kept untouched and statuses never regress. It
// returns the number of messages raised.
func MergeStatuses(current, updates []*Message) int {
	target := make(map[int64]MessageStatus, len(updates))
	for _, m := range updates {
		target[m.ID] = m.Status
	}

	changed := 0
	for _, m := range current {
		status, ok := target[m.ID]
		if ok && status.Rank() > m.Status.Rank() {
			m.Status = status
			changed++
		}
	}
	return changed
}
