package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSession is a mock implementation of the session interface
type MockSession struct {
	mock.Mock
}

func (m *MockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, embed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

func (m *MockSession) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, messageID, embed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

func (m *MockSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

func (m *MockSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	args := m.Called(channelID, messageID, emojiID)
	return args.Error(0)
}

func (m *MockSession) MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error {
	args := m.Called(channelID, messageID)
	return args.Error(0)
}

func unknownMessageErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
}

func pendingGeneralEntry(t *testing.T) *domain.PendingEntry {
	t.Helper()
	raw, err := json.Marshal(domain.GeneralKnowledgePayload{
		Title:    "Reverse Proxy",
		Content:  "A server that forwards requests.",
		Category: "社区知识",
	})
	require.NoError(t, err)
	return &domain.PendingEntry{
		ID:      42,
		Type:    domain.EntryTypeGeneralKnowledge,
		Payload: raw,
	}
}

func TestMessenger_PostReview(t *testing.T) {
	ctx := context.Background()

	t.Run("posts embed and seeds both vote reactions", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessageSendEmbed", "chan-1", mock.MatchedBy(func(embed *discordgo.MessageEmbed) bool {
			return embed.Title == "【社区投票】世界之书新投稿" && len(embed.Fields) == 3
		})).Return(&discordgo.Message{ID: "msg-1"}, nil)
		session.On("MessageReactionAdd", "chan-1", "msg-1", ApproveEmoji).Return(nil)
		session.On("MessageReactionAdd", "chan-1", "msg-1", RejectEmoji).Return(nil)

		messageID, err := messenger.PostReview(ctx, "chan-1", pendingGeneralEntry(t))

		require.NoError(t, err)
		assert.Equal(t, "msg-1", messageID)
		session.AssertExpectations(t)
	})

	t.Run("seed reaction failure does not fail the post", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessageSendEmbed", "chan-1", mock.Anything).Return(&discordgo.Message{ID: "msg-1"}, nil)
		session.On("MessageReactionAdd", "chan-1", "msg-1", mock.Anything).Return(unknownMessageErr())

		messageID, err := messenger.PostReview(ctx, "chan-1", pendingGeneralEntry(t))

		require.NoError(t, err)
		assert.Equal(t, "msg-1", messageID)
	})
}

func TestMessenger_CountVotes(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes the bot's seed reactions from the tallies", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessage", "chan-1", "msg-1").Return(&discordgo.Message{
			ID: "msg-1",
			Reactions: []*discordgo.MessageReactions{
				{Emoji: &discordgo.Emoji{Name: ApproveEmoji}, Count: 6, Me: true},
				{Emoji: &discordgo.Emoji{Name: RejectEmoji}, Count: 1, Me: true},
				{Emoji: &discordgo.Emoji{Name: "🎉"}, Count: 3},
			},
		}, nil)

		votes, err := messenger.CountVotes(ctx, "chan-1", "msg-1")

		require.NoError(t, err)
		assert.Equal(t, 5, votes.Approvals)
		assert.Equal(t, 0, votes.Rejections)
	})

	t.Run("deleted message maps to review message not found", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessage", "chan-1", "msg-gone").Return(nil, unknownMessageErr())

		_, err := messenger.CountVotes(ctx, "chan-1", "msg-gone")

		assert.ErrorIs(t, err, domain.ErrReviewMessageNotFound)
	})
}

func TestMessenger_Announcements(t *testing.T) {
	ctx := context.Background()

	t.Run("approval edits the message and clears reactions", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessageEditEmbed", "chan-1", "msg-1", mock.MatchedBy(func(embed *discordgo.MessageEmbed) bool {
			return embed.Footer != nil && embed.Footer.Text == "条目编号: entry-1"
		})).Return(&discordgo.Message{ID: "msg-1"}, nil)
		session.On("MessageReactionsRemoveAll", "chan-1", "msg-1").Return(nil)

		require.NoError(t, messenger.AnnounceApproval(ctx, "chan-1", "msg-1", "entry-1"))
		session.AssertExpectations(t)
	})

	t.Run("rejection embeds the reason", func(t *testing.T) {
		session := new(MockSession)
		messenger := newMessengerWithSession(session)

		session.On("ChannelMessageEditEmbed", "chan-1", "msg-1", mock.MatchedBy(func(embed *discordgo.MessageEmbed) bool {
			return strings.Contains(embed.Description, "insufficient votes") &&
				embed.Color == colorRed
		})).Return(&discordgo.Message{ID: "msg-1"}, nil)
		session.On("MessageReactionsRemoveAll", "chan-1", "msg-1").Return(nil)

		require.NoError(t, messenger.AnnounceRejection(ctx, "chan-1", "msg-1", "review time ended, insufficient votes"))
		session.AssertExpectations(t)
	})
}
