package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EmployeeThreadPrefix marks the synthetic employee-to-support namespace.
const EmployeeThreadPrefix = "EMP_"

type ConversationKind int

const (
	KindComplaint ConversationKind = iota + 1
	KindEmployeeThread
)

// ConversationID identifies either a customer complaint or an employee thread.
// It is resolved once at the boundary; internal code never re-parses the string.
type ConversationID struct {
	kind      ConversationKind
	complaint uint64
	mobile    string
}

func ComplaintConversation(id uint64) ConversationID {
	return ConversationID{kind: KindComplaint, complaint: id}
}

func EmployeeThread(mobile string) ConversationID {
	return ConversationID{kind: KindEmployeeThread, mobile: mobile}
}

// ParseConversationID accepts "<digits>" for complaints and "EMP_<mobile>" for
// employee threads.
func ParseConversationID(raw string) (ConversationID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ConversationID{}, fmt.Errorf("empty conversation id")
	}

	if strings.HasPrefix(raw, EmployeeThreadPrefix) {
		mobile := strings.TrimPrefix(raw, EmployeeThreadPrefix)
		if mobile == "" {
			return ConversationID{}, fmt.Errorf("employee thread %q has no mobile number", raw)
		}
		return EmployeeThread(mobile), nil
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return ConversationID{}, fmt.Errorf("invalid conversation id %q", raw)
	}
	return ComplaintConversation(n), nil
}

func (c ConversationID) Kind() ConversationKind { return c.kind }

func (c ConversationID) IsZero() bool { return c.kind == 0 }

func (c ConversationID) IsEmployeeThread() bool { return c.kind == KindEmployeeThread }

// ComplaintNumber returns the numeric complaint id; ok is false for employee threads.
func (c ConversationID) ComplaintNumber() (uint64, bool) {
	return c.complaint, c.kind == KindComplaint
}

// Mobile returns the employee mobile number; ok is false for complaints.
func (c ConversationID) Mobile() (string, bool) {
	return c.mobile, c.kind == KindEmployeeThread
}

// String is the canonical store key and wire form.
func (c ConversationID) String() string {
	switch c.kind {
	case KindComplaint:
		return strconv.FormatUint(c.complaint, 10)
	case KindEmployeeThread:
		return EmployeeThreadPrefix + c.mobile
	default:
		return ""
	}
}

func (c ConversationID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts both JSON strings and bare numbers, since clients send
// complaint ids either way.
func (c *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("conversation id is required")
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	parsed, err := ParseConversationID(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ConversationStatus is the business workflow state of a complaint. The
// messaging core stores it but does not enforce transitions.
type ConversationStatus string

const (
	ConversationPending    ConversationStatus = "Pending"
	ConversationInProgress ConversationStatus = "In Progress"
	ConversationResolved   ConversationStatus = "Resolved"
)

func ParseConversationStatus(raw string) (ConversationStatus, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "")) {
	case "pending":
		return ConversationPending, nil
	case "inprogress":
		return ConversationInProgress, nil
	case "resolved":
		return ConversationResolved, nil
	}
	return "", fmt.Errorf("unknown conversation status %q", raw)
}

// Conversation is the persisted record: workflow status plus the embedded ledger.
type Conversation struct {
	ID        string             `json:"id" firestore:"id" bson:"_id"`
	Status    ConversationStatus `json:"status" firestore:"status" bson:"status"`
	Messages  []*Message         `json:"messages" firestore:"messages" bson:"messages"`
	UpdatedAt time.Time          `json:"updated_at" firestore:"updatedAt" bson:"updatedAt"`
}
