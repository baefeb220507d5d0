// Package discord adapts the review workflow to the Discord messaging
// platform: posting vote messages, tallying reactions, and announcing
// outcomes.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/service"
)

const (
	// ApproveEmoji is the reaction community members add to approve
	ApproveEmoji = "✅"
	// RejectEmoji is the reaction community members add to reject
	RejectEmoji = "❌"

	colorGold  = 0xf1c40f
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
)

// session is the slice of discordgo.Session the messenger needs.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Messenger implements the review messaging surface on top of a Discord
// session.
type Messenger struct {
	session session
}

// NewMessenger creates a new Messenger instance
func NewMessenger(s *discordgo.Session) *Messenger {
	return &Messenger{session: s}
}

func newMessengerWithSession(s session) *Messenger {
	return &Messenger{session: s}
}

// PostReview posts the public vote message for a submission and seeds the
// vote reactions. Returns the posted message id.
func (m *Messenger) PostReview(ctx context.Context, channelID string, e *domain.PendingEntry) (string, error) {
	embed, err := reviewEmbed(e)
	if err != nil {
		return "", err
	}

	msg, err := m.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", fmt.Errorf("failed to post review message: %w", err)
	}

	for _, emoji := range []string{ApproveEmoji, RejectEmoji} {
		if err := m.session.MessageReactionAdd(channelID, msg.ID, emoji); err != nil {
			// Voters can still react manually; the tally is unaffected.
			log.Printf("discord: failed to seed %s reaction on message %s: %v", emoji, msg.ID, err)
		}
	}

	return msg.ID, nil
}

// CountVotes reads the non-bot vote tallies on a review message. The bot's
// own seed reaction is excluded from each count.
func (m *Messenger) CountVotes(ctx context.Context, channelID, messageID string) (service.VoteCounts, error) {
	msg, err := m.session.ChannelMessage(channelID, messageID)
	if err != nil {
		if isUnknownMessage(err) {
			return service.VoteCounts{}, domain.ErrReviewMessageNotFound
		}
		return service.VoteCounts{}, fmt.Errorf("failed to fetch review message: %w", err)
	}

	var votes service.VoteCounts
	for _, reaction := range msg.Reactions {
		count := reaction.Count
		if reaction.Me {
			count--
		}
		switch reaction.Emoji.Name {
		case ApproveEmoji:
			votes.Approvals = count
		case RejectEmoji:
			votes.Rejections = count
		}
	}
	return votes, nil
}

// AnnounceApproval rewrites the review message as approved and removes the
// vote reactions so a resolved item collects no further votes.
func (m *Messenger) AnnounceApproval(ctx context.Context, channelID, messageID, entryID string) error {
	embed := &discordgo.MessageEmbed{
		Title:       "【投稿通过】世界之书新条目",
		Description: "这份投稿已通过社区审核，并已收录进世界之书。",
		Color:       colorGreen,
		Footer:      &discordgo.MessageEmbedFooter{Text: "条目编号: " + entryID},
	}

	if _, err := m.session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		if isUnknownMessage(err) {
			return domain.ErrReviewMessageNotFound
		}
		return fmt.Errorf("failed to edit review message: %w", err)
	}

	if err := m.session.MessageReactionsRemoveAll(channelID, messageID); err != nil {
		log.Printf("discord: failed to clear reactions on message %s: %v", messageID, err)
	}
	return nil
}

// AnnounceRejection rewrites the review message as rejected with a
// human-readable reason.
func (m *Messenger) AnnounceRejection(ctx context.Context, channelID, messageID, reason string) error {
	embed := &discordgo.MessageEmbed{
		Title:       "【投稿未通过】世界之书",
		Description: "这份投稿未通过社区审核。\n原因: " + reason,
		Color:       colorRed,
	}

	if _, err := m.session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		if isUnknownMessage(err) {
			return domain.ErrReviewMessageNotFound
		}
		return fmt.Errorf("failed to edit review message: %w", err)
	}

	if err := m.session.MessageReactionsRemoveAll(channelID, messageID); err != nil {
		log.Printf("discord: failed to clear reactions on message %s: %v", messageID, err)
	}
	return nil
}

// reviewEmbed renders the vote message for a submission.
func reviewEmbed(e *domain.PendingEntry) (*discordgo.MessageEmbed, error) {
	embed := &discordgo.MessageEmbed{
		Title: "【社区投票】世界之书新投稿",
		Description: fmt.Sprintf("有成员提交了新的世界之书内容，请大家投票审核！\n\n"+
			"%s 同意收录　%s 反对收录", ApproveEmoji, RejectEmoji),
		Color:  colorGold,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("投稿编号: %d", e.ID)},
	}

	switch e.Type {
	case domain.EntryTypeGeneralKnowledge:
		p, err := e.DecodeGeneralKnowledge()
		if err != nil {
			return nil, err
		}
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "标题", Value: p.Title, Inline: true},
			{Name: "类别", Value: p.Category, Inline: true},
			{Name: "内容", Value: truncateField(p.Content), Inline: false},
		}
	case domain.EntryTypeCommunityMember, domain.EntryTypePersonalProfile:
		p, err := e.DecodeCommunityMember()
		if err != nil {
			return nil, err
		}
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "成员名称", Value: p.Name, Inline: true},
			{Name: "性格", Value: truncateField(p.Personality), Inline: false},
		}
	default:
		return nil, fmt.Errorf("cannot render review message: %w", domain.ErrInvalidEntryType)
	}

	return embed, nil
}

// Discord caps embed field values at 1024 characters.
func truncateField(s string) string {
	if s == "" {
		return "（未填写）"
	}
	runes := []rune(s)
	if len(runes) <= 1024 {
		return s
	}
	return string(runes[:1021]) + "..."
}

// isUnknownMessage reports whether an API error means the message was
// deleted.
func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}
