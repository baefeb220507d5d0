package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/telemetry"
)

// Rejection reasons shown on the public review message.
const (
	ReasonInsufficientVotes = "review time ended, insufficient votes"
	ReasonMessageLost       = "review message lost"
	ReasonVotedDown         = "rejected by community vote"
)

// ReviewThresholds are the vote counts governing one entry type's review.
type ReviewThresholds struct {
	// ApprovalThreshold is the approve count required when the review
	// window closes.
	ApprovalThreshold int
	// InstantApprovalThreshold short-circuits the window on a strong
	// early consensus.
	InstantApprovalThreshold int
	// RejectionThreshold rejects the entry as soon as it is reached.
	RejectionThreshold int
}

// ReviewConfig carries the per-entry-type thresholds and the review window.
type ReviewConfig struct {
	Window   time.Duration
	General  ReviewThresholds
	Personal ReviewThresholds
}

// DefaultReviewConfig returns the community's standing review rules.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		Window: 5 * time.Minute,
		General: ReviewThresholds{
			ApprovalThreshold:        5,
			InstantApprovalThreshold: 10,
			RejectionThreshold:       3,
		},
		Personal: ReviewThresholds{
			ApprovalThreshold:        2,
			InstantApprovalThreshold: 7,
			RejectionThreshold:       3,
		},
	}
}

func (c ReviewConfig) thresholdsFor(t domain.EntryType) ReviewThresholds {
	if t == domain.EntryTypePersonalProfile {
		return c.Personal
	}
	return c.General
}

// PendingStore is the persistence surface the coordinator needs for
// in-flight submissions.
type PendingStore interface {
	Create(ctx context.Context, e *domain.PendingEntry) error
	AttachMessage(ctx context.Context, id int64, messageID string) error
	GetPendingByMessage(ctx context.Context, messageID string) (*domain.PendingEntry, error)
	MarkResolved(ctx context.Context, id int64, status domain.PendingStatus) (bool, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]*domain.PendingEntry, error)
}

// VoteCounts holds the non-bot reaction tallies on a review message.
type VoteCounts struct {
	Approvals  int
	Rejections int
}

// ReviewMessenger is the messaging-platform surface for the review flow:
// posting the public vote message, reading its tallies, and announcing the
// outcome. CountVotes returns domain.ErrReviewMessageNotFound when the
// message has been deleted.
type ReviewMessenger interface {
	PostReview(ctx context.Context, channelID string, e *domain.PendingEntry) (messageID string, err error)
	CountVotes(ctx context.Context, channelID, messageID string) (VoteCounts, error)
	AnnounceApproval(ctx context.Context, channelID, messageID, entryID string) error
	AnnounceRejection(ctx context.Context, channelID, messageID, reason string) error
}

// RefundService returns purchase coins to a submitter whose entry was
// rejected.
type RefundService interface {
	Refund(ctx context.Context, userID string, amount int64, reason string) error
}

// KnowledgeCommitter writes approved submissions to the authoritative store.
// Implemented by KnowledgeService.
type KnowledgeCommitter interface {
	CommitGeneralKnowledge(ctx context.Context, p *domain.GeneralKnowledgePayload) (string, error)
	CommitOrUpdateCommunityMember(ctx context.Context, p *domain.CommunityMemberPayload, updateTargetID string) (string, error)
	FindCommunityMemberByLinkedID(ctx context.Context, discordID string) (string, error)
}

// ReviewCoordinator runs the community review state machine: submissions
// enter pending, reactions and the expiry sweep drive them to approved or
// rejected exactly once, approval commits to the knowledge store, rejection
// refunds any purchase. The at-most-once guarantee rests on MarkResolved's
// conditional transition.
type ReviewCoordinator struct {
	cfg       ReviewConfig
	pending   PendingStore
	knowledge KnowledgeCommitter
	messenger ReviewMessenger
	refunds   RefundService
	now       func() time.Time
}

// NewReviewCoordinator creates a new ReviewCoordinator instance
func NewReviewCoordinator(cfg ReviewConfig, pending PendingStore, knowledge KnowledgeCommitter, messenger ReviewMessenger, refunds RefundService) *ReviewCoordinator {
	return &ReviewCoordinator{
		cfg:       cfg,
		pending:   pending,
		knowledge: knowledge,
		messenger: messenger,
		refunds:   refunds,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewReviewCoordinatorWithClock creates a ReviewCoordinator with a custom
// time source (for testing)
func NewReviewCoordinatorWithClock(cfg ReviewConfig, pending PendingStore, knowledge KnowledgeCommitter, messenger ReviewMessenger, refunds RefundService, now func() time.Time) *ReviewCoordinator {
	c := NewReviewCoordinator(cfg, pending, knowledge, messenger, refunds)
	c.now = now
	return c
}

// Submit validates a submission, persists it as pending, and posts the
// public review message. A posting failure leaves the pending row without a
// message id; the sweep later rejects it as lost.
func (c *ReviewCoordinator) Submit(ctx context.Context, e *domain.PendingEntry) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewCoordinator.Submit", telemetry.SpanAttributes{
		GuildID:   e.Origin.GuildID,
		Operation: "submit",
	})
	defer span.End()

	now := c.now()
	e.Status = domain.PendingStatusPending
	e.CreatedAt = now
	e.ExpiresAt = now.Add(c.cfg.Window)

	if err := domain.ValidatePendingEntry(e); err != nil {
		return 0, err
	}

	if err := c.pending.Create(ctx, e); err != nil {
		span.SetError(err)
		return 0, err
	}

	messageID, err := c.messenger.PostReview(ctx, e.Origin.ChannelID, e)
	if err != nil {
		span.SetError(err)
		log.Printf("review: failed to post review message for entry %d: %v", e.ID, err)
		return e.ID, nil
	}

	if err := c.pending.AttachMessage(ctx, e.ID, messageID); err != nil {
		span.SetError(err)
		return e.ID, err
	}
	e.ReviewMessageID = messageID

	log.Printf("review: entry %d submitted (type: %s, expires: %s)", e.ID, e.Type, e.ExpiresAt.Format(time.RFC3339))
	return e.ID, nil
}

// HandleReaction re-evaluates the entry attached to a review message after a
// reaction-add event. Instant approval is checked before rejection, so a
// message crossing both thresholds at once approves. Events for unknown or
// already-resolved messages are ignored.
func (c *ReviewCoordinator) HandleReaction(ctx context.Context, messageID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ReviewCoordinator.HandleReaction", telemetry.SpanAttributes{
		Operation: "reaction",
	})
	defer span.End()

	entry, err := c.pending.GetPendingByMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrPendingEntryNotFound) {
			return nil
		}
		span.SetError(err)
		return err
	}

	votes, err := c.messenger.CountVotes(ctx, entry.Origin.ChannelID, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrReviewMessageNotFound) {
			return c.reject(ctx, entry, ReasonMessageLost)
		}
		span.SetError(err)
		return err
	}

	th := c.cfg.thresholdsFor(entry.Type)
	switch {
	case votes.Approvals >= th.InstantApprovalThreshold:
		return c.approve(ctx, entry)
	case votes.Rejections >= th.RejectionThreshold:
		return c.reject(ctx, entry, ReasonVotedDown)
	default:
		return nil
	}
}

// SweepExpired resolves every pending entry whose review window has passed.
// Failures on one entry are logged and do not block the rest of the sweep.
func (c *ReviewCoordinator) SweepExpired(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ReviewCoordinator.SweepExpired", telemetry.SpanAttributes{
		Operation: "sweep",
	})
	defer span.End()

	expired, err := c.pending.ListExpired(ctx, c.now())
	if err != nil {
		span.SetError(err)
		return err
	}

	for _, entry := range expired {
		if err := c.sweepOne(ctx, entry); err != nil {
			log.Printf("review: sweep failed for entry %d: %v", entry.ID, err)
			telemetry.CaptureError(ctx, err)
		}
	}
	return nil
}

func (c *ReviewCoordinator) sweepOne(ctx context.Context, entry *domain.PendingEntry) error {
	if entry.ReviewMessageID == "" {
		return c.reject(ctx, entry, ReasonMessageLost)
	}

	votes, err := c.messenger.CountVotes(ctx, entry.Origin.ChannelID, entry.ReviewMessageID)
	if err != nil {
		if errors.Is(err, domain.ErrReviewMessageNotFound) {
			return c.reject(ctx, entry, ReasonMessageLost)
		}
		return err
	}

	if votes.Approvals >= c.cfg.thresholdsFor(entry.Type).ApprovalThreshold {
		return c.approve(ctx, entry)
	}
	return c.reject(ctx, entry, ReasonInsufficientVotes)
}

// approve commits the entry, then flips it to approved. The commit runs
// first because pending-status lookups already hide the entry from repeat
// evaluation, and a failed commit must leave the entry pending for the next
// sweep to retry.
func (c *ReviewCoordinator) approve(ctx context.Context, entry *domain.PendingEntry) error {
	entryID, err := c.commit(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to commit entry %d: %w", entry.ID, err)
	}

	resolved, err := c.pending.MarkResolved(ctx, entry.ID, domain.PendingStatusApproved)
	if err != nil {
		return err
	}
	if !resolved {
		// A concurrent evaluation won the race; it owns the announcement.
		log.Printf("review: entry %d already resolved, skipping approval side effects", entry.ID)
		return nil
	}

	log.Printf("review: entry %d approved, committed as %s", entry.ID, entryID)

	if entry.ReviewMessageID != "" {
		if err := c.messenger.AnnounceApproval(ctx, entry.Origin.ChannelID, entry.ReviewMessageID, entryID); err != nil {
			log.Printf("review: failed to announce approval of entry %d: %v", entry.ID, err)
		}
	}
	return nil
}

// reject flips the entry to rejected, refunds any purchase, and updates the
// public message. MarkResolved runs first so the refund is issued at most
// once across racing evaluations.
func (c *ReviewCoordinator) reject(ctx context.Context, entry *domain.PendingEntry, reason string) error {
	resolved, err := c.pending.MarkResolved(ctx, entry.ID, domain.PendingStatusRejected)
	if err != nil {
		return err
	}
	if !resolved {
		return nil
	}

	log.Printf("review: entry %d rejected (%s)", entry.ID, reason)

	if purchase, ok := entry.Purchase(); ok {
		if err := c.refunds.Refund(ctx, entry.Origin.SubmitterID, purchase.Price, reason); err != nil {
			log.Printf("review: refund failed for entry %d (user %s, amount %d): %v", entry.ID, entry.Origin.SubmitterID, purchase.Price, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	if entry.ReviewMessageID != "" {
		if err := c.messenger.AnnounceRejection(ctx, entry.Origin.ChannelID, entry.ReviewMessageID, reason); err != nil {
			log.Printf("review: failed to announce rejection of entry %d: %v", entry.ID, err)
		}
	}
	return nil
}

// commit dispatches the payload to the knowledge store by entry type.
func (c *ReviewCoordinator) commit(ctx context.Context, entry *domain.PendingEntry) (string, error) {
	switch entry.Type {
	case domain.EntryTypeGeneralKnowledge:
		payload, err := entry.DecodeGeneralKnowledge()
		if err != nil {
			return "", err
		}
		return c.knowledge.CommitGeneralKnowledge(ctx, payload)
	case domain.EntryTypeCommunityMember, domain.EntryTypePersonalProfile:
		payload, err := entry.DecodeCommunityMember()
		if err != nil {
			return "", err
		}
		targetID, err := c.knowledge.FindCommunityMemberByLinkedID(ctx, payload.DiscordID)
		if err != nil {
			return "", err
		}
		return c.knowledge.CommitOrUpdateCommunityMember(ctx, payload, targetID)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidEntryType, entry.Type)
	}
}
