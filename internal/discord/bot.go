package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

// reactionHandlerTimeout bounds one reaction evaluation
const reactionHandlerTimeout = 30 * time.Second

// ReactionHandler re-evaluates the review state of the entry attached to a
// message. Implemented by service.ReviewCoordinator.
type ReactionHandler interface {
	HandleReaction(ctx context.Context, messageID string) error
}

// Bot owns the Discord gateway connection and forwards vote reactions to
// the review coordinator.
type Bot struct {
	session *discordgo.Session
	handler ReactionHandler
}

// NewSession creates a gateway session with the intents the review flow
// needs. The session is not opened yet.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions
	return session, nil
}

// NewBot creates a new Bot instance connected to the given handler
func NewBot(session *discordgo.Session, handler ReactionHandler) *Bot {
	b := &Bot{
		session: session,
		handler: handler,
	}
	session.AddHandler(b.onReactionAdd)
	return b
}

// Session exposes the underlying discordgo session for messaging adapters.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Open connects to the Discord gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}
	log.Println("discord: gateway connection established")
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

// onReactionAdd feeds vote reactions into the review coordinator. Events
// from the bot itself and non-vote emoji are ignored here; unknown message
// ids are filtered by the coordinator's pending lookup.
func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}

	emoji := r.Emoji.Name
	if emoji != ApproveEmoji && emoji != RejectEmoji {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reactionHandlerTimeout)
		defer cancel()

		if err := b.handler.HandleReaction(ctx, r.MessageID); err != nil {
			log.Printf("discord: reaction evaluation failed for message %s: %v", r.MessageID, err)
		}
	}()
}
