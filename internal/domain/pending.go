package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntryType identifies which kind of submission a pending entry carries
type EntryType string

const (
	EntryTypeGeneralKnowledge EntryType = "general_knowledge"
	EntryTypeCommunityMember  EntryType = "community_member"
	EntryTypePersonalProfile  EntryType = "personal_profile"
)

// PendingStatus represents the review status of a pending entry
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
)

// Origin records where a submission came from
type Origin struct {
	ChannelID   string
	GuildID     string
	SubmitterID string
}

// PendingEntry is a community submission awaiting vote. Rows transition
// status exactly once, pending -> approved|rejected, and are never deleted.
type PendingEntry struct {
	ID              int64
	Type            EntryType
	Payload         json.RawMessage
	Origin          Origin
	ReviewMessageID string // empty between creation and message posting
	Status          PendingStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// PurchaseInfo is optional purchase metadata carried in a submission payload.
// A rejected submission with Price > 0 triggers a refund.
type PurchaseInfo struct {
	Price  int64  `json:"price"`
	ItemID string `json:"item_id"`
}

// GeneralKnowledgePayload is the payload of a general_knowledge submission
type GeneralKnowledgePayload struct {
	Title         string        `json:"title"`
	Name          string        `json:"name"`
	Content       string        `json:"content"`
	Category      string        `json:"category"`
	Aliases       []string      `json:"aliases,omitempty"`
	RefersTo      []string      `json:"refers_to,omitempty"`
	ContributorID string        `json:"contributor_id"`
	Purchase      *PurchaseInfo `json:"purchase_info,omitempty"`
}

// CommunityMemberPayload is the payload of a community_member or
// personal_profile submission
type CommunityMemberPayload struct {
	Name           string        `json:"name"`
	DiscordID      string        `json:"discord_id,omitempty"`
	Personality    string        `json:"personality"`
	Background     string        `json:"background,omitempty"`
	Preferences    string        `json:"preferences,omitempty"`
	UploadedBy     string        `json:"uploaded_by"`
	UploadedByName string        `json:"uploaded_by_name"`
	Purchase       *PurchaseInfo `json:"purchase_info,omitempty"`
}

// DecodeGeneralKnowledge decodes the entry payload as a general knowledge
// submission
func (e *PendingEntry) DecodeGeneralKnowledge() (*GeneralKnowledgePayload, error) {
	var p GeneralKnowledgePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode general knowledge payload: %w", err)
	}
	return &p, nil
}

// DecodeCommunityMember decodes the entry payload as a community member or
// personal profile submission
func (e *PendingEntry) DecodeCommunityMember() (*CommunityMemberPayload, error) {
	var p CommunityMemberPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode community member payload: %w", err)
	}
	return &p, nil
}

// Purchase extracts purchase metadata from the payload regardless of entry
// type. Returns false when the payload carries none or the price is zero.
func (e *PendingEntry) Purchase() (PurchaseInfo, bool) {
	var envelope struct {
		Purchase *PurchaseInfo `json:"purchase_info"`
	}
	if err := json.Unmarshal(e.Payload, &envelope); err != nil {
		return PurchaseInfo{}, false
	}
	if envelope.Purchase == nil || envelope.Purchase.Price <= 0 {
		return PurchaseInfo{}, false
	}
	return *envelope.Purchase, true
}

// Expired reports whether the review window has closed as of the given time
func (e *PendingEntry) Expired(asOf time.Time) bool {
	return !e.ExpiresAt.After(asOf)
}

// ValidatePendingEntry validates a PendingEntry instance
func ValidatePendingEntry(e *PendingEntry) error {
	if e == nil {
		return fmt.Errorf("pending entry cannot be nil")
	}

	if !isValidEntryType(e.Type) {
		return fmt.Errorf("pending entry Type is invalid: %s", e.Type)
	}

	if !isValidPendingStatus(e.Status) {
		return fmt.Errorf("pending entry Status is invalid: %s", e.Status)
	}

	if len(e.Payload) == 0 {
		return fmt.Errorf("pending entry Payload is required")
	}

	if e.Origin.ChannelID == "" || e.Origin.GuildID == "" || e.Origin.SubmitterID == "" {
		return fmt.Errorf("pending entry Origin is incomplete")
	}

	if e.ExpiresAt.IsZero() {
		return fmt.Errorf("pending entry ExpiresAt is required")
	}

	return nil
}

// isValidEntryType checks if an EntryType is valid
func isValidEntryType(t EntryType) bool {
	switch t {
	case EntryTypeGeneralKnowledge, EntryTypeCommunityMember, EntryTypePersonalProfile:
		return true
	}
	return false
}

// isValidPendingStatus checks if a PendingStatus is valid
func isValidPendingStatus(s PendingStatus) bool {
	switch s {
	case PendingStatusPending, PendingStatusApproved, PendingStatusRejected:
		return true
	}
	return false
}
