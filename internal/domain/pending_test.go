package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		typeVal  EntryType
		expected string
	}{
		{"GeneralKnowledge", EntryTypeGeneralKnowledge, "general_knowledge"},
		{"CommunityMember", EntryTypeCommunityMember, "community_member"},
		{"PersonalProfile", EntryTypePersonalProfile, "personal_profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.typeVal))
		})
	}
}

func TestPendingStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   PendingStatus
		expected string
	}{
		{"Pending", PendingStatusPending, "pending"},
		{"Approved", PendingStatusApproved, "approved"},
		{"Rejected", PendingStatusRejected, "rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func validPendingEntry(t *testing.T) *PendingEntry {
	t.Helper()
	payload, err := json.Marshal(GeneralKnowledgePayload{
		Title:    "Reverse Proxy",
		Name:     "Reverse Proxy",
		Content:  "A server that forwards requests.",
		Category: "社区知识",
	})
	require.NoError(t, err)

	return &PendingEntry{
		ID:      1,
		Type:    EntryTypeGeneralKnowledge,
		Payload: payload,
		Origin: Origin{
			ChannelID:   "chan-1",
			GuildID:     "guild-1",
			SubmitterID: "user-1",
		},
		Status:    PendingStatusPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}
}

func TestValidatePendingEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		assert.NoError(t, ValidatePendingEntry(validPendingEntry(t)))
	})

	t.Run("nil entry", func(t *testing.T) {
		assert.Error(t, ValidatePendingEntry(nil))
	})

	t.Run("invalid type", func(t *testing.T) {
		e := validPendingEntry(t)
		e.Type = "blackjack_score"
		assert.Error(t, ValidatePendingEntry(e))
	})

	t.Run("invalid status", func(t *testing.T) {
		e := validPendingEntry(t)
		e.Status = "expired"
		assert.Error(t, ValidatePendingEntry(e))
	})

	t.Run("empty payload", func(t *testing.T) {
		e := validPendingEntry(t)
		e.Payload = nil
		assert.Error(t, ValidatePendingEntry(e))
	})

	t.Run("incomplete origin", func(t *testing.T) {
		e := validPendingEntry(t)
		e.Origin.SubmitterID = ""
		assert.Error(t, ValidatePendingEntry(e))
	})

	t.Run("missing expiry", func(t *testing.T) {
		e := validPendingEntry(t)
		e.ExpiresAt = time.Time{}
		assert.Error(t, ValidatePendingEntry(e))
	})
}

func TestPendingEntry_DecodeGeneralKnowledge(t *testing.T) {
	e := validPendingEntry(t)

	p, err := e.DecodeGeneralKnowledge()
	require.NoError(t, err)
	assert.Equal(t, "Reverse Proxy", p.Title)
	assert.Equal(t, "社区知识", p.Category)

	e.Payload = json.RawMessage(`{invalid`)
	_, err = e.DecodeGeneralKnowledge()
	assert.Error(t, err)
}

func TestPendingEntry_DecodeCommunityMember(t *testing.T) {
	payload, err := json.Marshal(CommunityMemberPayload{
		Name:        "Alice",
		DiscordID:   "123456789",
		Personality: "curious",
		UploadedBy:  "user-2",
	})
	require.NoError(t, err)

	e := &PendingEntry{Payload: payload}
	p, err := e.DecodeCommunityMember()
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "123456789", p.DiscordID)
}

func TestPendingEntry_Purchase(t *testing.T) {
	t.Run("payload with purchase info", func(t *testing.T) {
		e := &PendingEntry{
			Payload: json.RawMessage(`{"title":"t","purchase_info":{"price":100,"item_id":"contribution_ticket"}}`),
		}
		p, ok := e.Purchase()
		require.True(t, ok)
		assert.Equal(t, int64(100), p.Price)
		assert.Equal(t, "contribution_ticket", p.ItemID)
	})

	t.Run("payload without purchase info", func(t *testing.T) {
		e := &PendingEntry{Payload: json.RawMessage(`{"title":"t"}`)}
		_, ok := e.Purchase()
		assert.False(t, ok)
	})

	t.Run("zero price is not a purchase", func(t *testing.T) {
		e := &PendingEntry{Payload: json.RawMessage(`{"purchase_info":{"price":0}}`)}
		_, ok := e.Purchase()
		assert.False(t, ok)
	})
}

func TestPendingEntry_Expired(t *testing.T) {
	now := time.Now().UTC()
	e := &PendingEntry{ExpiresAt: now}

	assert.True(t, e.Expired(now))
	assert.True(t, e.Expired(now.Add(time.Second)))
	assert.False(t, e.Expired(now.Add(-time.Second)))
}
