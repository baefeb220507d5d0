package domain

import (
	"fmt"
	"time"
)

// Category is a lazily created knowledge category
type Category struct {
	ID   int64
	Name string
}

// GeneralKnowledge is a committed world-book entry. The id is a slug of the
// title plus a timestamp suffix and is immutable once committed.
type GeneralKnowledge struct {
	ID            string
	Title         string
	Name          string
	Content       map[string]string
	CategoryID    int64
	CategoryName  string
	Aliases       []string
	RefersTo      []string
	ContributorID string
	CreatedAt     time.Time
}

// CommunityMemberProfile is a committed profile of a community member. At
// most one profile per linked Discord numeric id is canonical: resubmissions
// for the same linked id update in place.
type CommunityMemberProfile struct {
	ID              string
	Title           string
	DiscordNumberID string // optional linked Discord id
	Content         map[string]string
	Nicknames       []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateGeneralKnowledge validates a GeneralKnowledge instance
func ValidateGeneralKnowledge(k *GeneralKnowledge) error {
	if k == nil {
		return fmt.Errorf("general knowledge cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("general knowledge ID is required")
	}

	if k.Title == "" {
		return fmt.Errorf("general knowledge Title is required")
	}

	if k.CategoryID <= 0 {
		return fmt.Errorf("general knowledge CategoryID is required")
	}

	return nil
}

// ValidateCommunityMemberProfile validates a CommunityMemberProfile instance
func ValidateCommunityMemberProfile(p *CommunityMemberProfile) error {
	if p == nil {
		return fmt.Errorf("community member profile cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("community member profile ID is required")
	}

	if p.Title == "" {
		return fmt.Errorf("community member profile Title is required")
	}

	return nil
}
