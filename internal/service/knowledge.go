package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/telemetry"
)

// slugPattern matches every rune that is not a word character or CJK
// ideograph; such runes are flattened to underscores in generated ids.
var slugPattern = regexp.MustCompile(`[^\w\x{4e00}-\x{9fff}]`)

const slugMaxRunes = 50

// memberIDPrefix distinguishes community member profile ids from general
// knowledge ids in the shared vector index namespace.
const memberIDPrefix = "community_"

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService commits approved submissions to the authoritative store.
// Every commit writes the entry, its sub-collections, and an indexing outbox
// job in one transaction.
type KnowledgeService struct {
	txRunner TxRunner
	members  MemberRepositoryInterface
	uuidGen  UUIDGenerator
	now      func() time.Time
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(txRunner TxRunner, members MemberRepositoryInterface) *KnowledgeService {
	return &KnowledgeService{
		txRunner: txRunner,
		members:  members,
		uuidGen:  &DefaultUUIDGenerator{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewKnowledgeServiceWithClock creates a KnowledgeService with custom id and
// time sources (for testing)
func NewKnowledgeServiceWithClock(txRunner TxRunner, members MemberRepositoryInterface, uuidGen UUIDGenerator, now func() time.Time) *KnowledgeService {
	return &KnowledgeService{
		txRunner: txRunner,
		members:  members,
		uuidGen:  uuidGen,
		now:      now,
	}
}

// CommitGeneralKnowledge looks up or creates the category, generates an id
// from the title and timestamp, and inserts the entry with its aliases and
// references atomically. An id collision is retried once with a regenerated
// id before surfacing the conflict.
func (s *KnowledgeService) CommitGeneralKnowledge(ctx context.Context, p *domain.GeneralKnowledgePayload) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.CommitGeneralKnowledge", telemetry.SpanAttributes{
		Category:  p.Category,
		Operation: "commit",
	})
	defer span.End()

	if p.Title == "" {
		return "", fmt.Errorf("%w: title", domain.ErrMissingRequiredField)
	}
	if p.Category == "" {
		return "", fmt.Errorf("%w: category", domain.ErrMissingRequiredField)
	}

	now := s.now()
	entryID, err := s.insertGeneralKnowledge(ctx, p, generateEntryID("", p.Title, now), now)
	if errors.Is(err, domain.ErrEntryIDConflict) {
		// Timestamp-granular ids collide only when the same title commits
		// twice in one second; a bumped timestamp resolves it.
		entryID, err = s.insertGeneralKnowledge(ctx, p, generateEntryID("", p.Title, now.Add(time.Second)), now)
	}
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return entryID, nil
}

func (s *KnowledgeService) insertGeneralKnowledge(ctx context.Context, p *domain.GeneralKnowledgePayload, entryID string, now time.Time) (string, error) {
	jobID := s.uuidGen.NewString()

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		categoryID, err := repos.Categories().GetOrCreate(ctx, p.Category)
		if err != nil {
			return fmt.Errorf("failed to resolve category %q: %w", p.Category, err)
		}

		name := p.Name
		if name == "" {
			name = p.Title
		}

		entry := &domain.GeneralKnowledge{
			ID:            entryID,
			Title:         p.Title,
			Name:          name,
			Content:       map[string]string{"description": p.Content},
			CategoryID:    categoryID,
			CategoryName:  p.Category,
			Aliases:       p.Aliases,
			RefersTo:      p.RefersTo,
			ContributorID: p.ContributorID,
			CreatedAt:     now,
		}
		if err := repos.GeneralKnowledge().Create(ctx, entry); err != nil {
			return err
		}

		return repos.IndexJobs().Create(ctx, &domain.IndexJob{
			ID:        jobID,
			EntryID:   entryID,
			EntryKind: domain.IndexEntryKindGeneral,
			Op:        domain.IndexOpUpsert,
			Status:    domain.IndexJobStatusPending,
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// CommitOrUpdateCommunityMember inserts a new profile, or fully replaces the
// content and nickname set of updateTargetID when given. The update is a
// replace, not a merge. Returns the committed profile id.
func (s *KnowledgeService) CommitOrUpdateCommunityMember(ctx context.Context, p *domain.CommunityMemberPayload, updateTargetID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.CommitOrUpdateCommunityMember", telemetry.SpanAttributes{
		EntryID:   updateTargetID,
		Operation: "commit",
	})
	defer span.End()

	if p.Name == "" {
		return "", fmt.Errorf("%w: name", domain.ErrMissingRequiredField)
	}

	now := s.now()

	if updateTargetID != "" {
		if err := s.writeMember(ctx, p, updateTargetID, now, true); err != nil {
			span.SetError(err)
			return "", err
		}
		return updateTargetID, nil
	}

	memberID := generateEntryID(memberIDPrefix, p.Name, now)
	err := s.writeMember(ctx, p, memberID, now, false)
	if errors.Is(err, domain.ErrEntryIDConflict) {
		memberID = generateEntryID(memberIDPrefix, p.Name, now.Add(time.Second))
		err = s.writeMember(ctx, p, memberID, now, false)
	}
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return memberID, nil
}

func (s *KnowledgeService) writeMember(ctx context.Context, p *domain.CommunityMemberPayload, memberID string, now time.Time, update bool) error {
	jobID := s.uuidGen.NewString()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		profile := &domain.CommunityMemberProfile{
			ID:              memberID,
			Title:           "社区成员档案 - " + p.Name,
			DiscordNumberID: p.DiscordID,
			Content:         memberContent(p),
			Nicknames:       memberNicknames(p),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		var err error
		if update {
			err = repos.Members().Update(ctx, profile)
		} else {
			err = repos.Members().Create(ctx, profile)
		}
		if err != nil {
			return err
		}

		return repos.IndexJobs().Create(ctx, &domain.IndexJob{
			ID:        jobID,
			EntryID:   memberID,
			EntryKind: domain.IndexEntryKindMember,
			Op:        domain.IndexOpUpsert,
			Status:    domain.IndexJobStatusPending,
			CreatedAt: now,
		})
	})
}

// FindCommunityMemberByLinkedID returns the profile id linked to a Discord
// numeric id, or empty when no profile is linked. Used by the submission
// flow to route resubmissions to an in-place update.
func (s *KnowledgeService) FindCommunityMemberByLinkedID(ctx context.Context, discordID string) (string, error) {
	if discordID == "" {
		return "", nil
	}

	id, err := s.members.FindByDiscordNumberID(ctx, discordID)
	if err != nil {
		if errors.Is(err, domain.ErrMemberProfileNotFound) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func memberContent(p *domain.CommunityMemberPayload) map[string]string {
	content := map[string]string{
		"name":        p.Name,
		"personality": orUnprovided(p.Personality),
		"background":  orUnprovided(p.Background),
		"preferences": orUnprovided(p.Preferences),
	}
	if p.UploadedBy != "" {
		content["uploaded_by"] = p.UploadedBy
	}
	if p.UploadedByName != "" {
		content["uploaded_by_name"] = p.UploadedByName
	}
	return content
}

func memberNicknames(p *domain.CommunityMemberPayload) []string {
	if p.Name == "" {
		return nil
	}
	return []string{p.Name}
}

func orUnprovided(s string) string {
	if s == "" {
		return "未提供"
	}
	return s
}

// generateEntryID builds a collision-resistant id from a slug of the source
// text plus a unix timestamp suffix.
func generateEntryID(prefix, source string, now time.Time) string {
	slug := slugPattern.ReplaceAllString(source, "_")
	runes := []rune(slug)
	if len(runes) > slugMaxRunes {
		slug = string(runes[:slugMaxRunes])
	}
	return fmt.Sprintf("%s%s_%d", prefix, slug, now.Unix())
}
