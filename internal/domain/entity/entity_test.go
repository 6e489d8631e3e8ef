package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConversationID(t *testing.T) {
	complaint, err := ParseConversationID("42")
	require.NoError(t, err)
	assert.Equal(t, KindComplaint, complaint.Kind())
	n, ok := complaint.ComplaintNumber()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), n)
	assert.Equal(t, "42", complaint.String())

	thread, err := ParseConversationID("EMP_9998887777")
	require.NoError(t, err)
	assert.True(t, thread.IsEmployeeThread())
	mobile, ok := thread.Mobile()
	assert.True(t, ok)
	assert.Equal(t, "9998887777", mobile)
	assert.Equal(t, "EMP_9998887777", thread.String())

	assert.NotEqual(t, complaint.String(), thread.String())
}

func TestParseConversationIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "  ", "EMP_", "abc", "-3", "4.2"} {
		_, err := ParseConversationID(raw)
		assert.Error(t, err, raw)
	}
}

func TestConversationIDJSON(t *testing.T) {
	var payload struct {
		ID ConversationID `json:"conversation_id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"conversation_id": 17}`), &payload))
	assert.Equal(t, ComplaintConversation(17), payload.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"conversation_id": "EMP_555"}`), &payload))
	assert.Equal(t, EmployeeThread("555"), payload.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"conversation_id": null}`), &payload))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id": "EMP_555"}`, string(out))
}

func TestParseRoleNormalizesAliases(t *testing.T) {
	cases := map[string]Role{
		"admin":    RoleSupport,
		"Support":  RoleSupport,
		"user":     RoleCustomer,
		"customer": RoleCustomer,
		"employee": RoleEmployee,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRole("robot")
	assert.Error(t, err)
}

func TestAddressedTo(t *testing.T) {
	fromSupport := &Message{SenderRole: RoleSupport}
	fromLegacyAdmin := &Message{SenderRole: Role("admin")}
	fromCustomer := &Message{SenderRole: RoleCustomer}
	fromEmployee := &Message{SenderRole: RoleEmployee}

	assert.True(t, fromSupport.AddressedTo(RoleCustomer))
	assert.True(t, fromSupport.AddressedTo(RoleEmployee))
	assert.False(t, fromSupport.AddressedTo(RoleSupport))
	assert.True(t, fromLegacyAdmin.AddressedTo(RoleCustomer))

	assert.True(t, fromCustomer.AddressedTo(RoleSupport))
	assert.True(t, fromEmployee.AddressedTo(RoleSupport))
	assert.False(t, fromCustomer.AddressedTo(RoleCustomer))
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
	assert.Zero(t, MessageStatus("bogus").Rank())
}

func TestPreviewFallsBackToMedia(t *testing.T) {
	m := &Message{ID: 7, SenderRole: RoleCustomer, ImageURL: "https://cdn/x.png"}
	assert.Equal(t, &ReplyPreview{ID: 7, Text: "Media", SenderRole: RoleCustomer}, m.Preview())
}

func TestCloneIsDeep(t *testing.T) {
	replyTo := int64(3)
	m := &Message{ID: 4, ReplyToMessageID: &replyTo, RepliedMessage: &ReplyPreview{ID: 3, Text: "hi"}}
	cp := m.Clone()
	*cp.ReplyToMessageID = 99
	cp.RepliedMessage.Text = "changed"
	cp.Status = StatusRead

	assert.Equal(t, int64(3), *m.ReplyToMessageID)
	assert.Equal(t, "hi", m.RepliedMessage.Text)
	assert.Empty(t, m.Status)
}

func TestParseConversationStatus(t *testing.T) {
	s, err := ParseConversationStatus("in progress")
	require.NoError(t, err)
	assert.Equal(t, ConversationInProgress, s)

	s, err = ParseConversationStatus("InProgress")
	require.NoError(t, err)
	assert.Equal(t, ConversationInProgress, s)

	_, err = ParseConversationStatus("closed")
	assert.Error(t, err)
}

func TestMergeStatusesKeepsConcurrentAppends(t *testing.T) {
	current := []*Message{
		{ID: 1, Status: StatusSent},
		{ID: 2, Status: StatusRead},
		{ID: 3, Status: StatusSent},
	}
	stale := []*Message{
		{ID: 1, Status: StatusRead},
		{ID: 2, Status: StatusDelivered},
	}

	changed := MergeStatuses(current, stale)

	assert.Equal(t, 1, changed)
	require.Len(t, current, 3)
	assert.Equal(t, StatusRead, current[0].Status)
	assert.Equal(t, StatusRead, current[1].Status, "status never regresses")
	assert.Equal(t, StatusSent, current[2].Status, "message missing from the update is kept")
}
