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

// EmbeddingClient generates embedding vectors for chunk text.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Available() bool
}

// ChunkStore persists the vector-indexed chunk sets.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, entryID string, chunks []domain.WorldBookChunk) error
	DeleteChunks(ctx context.Context, entryID string) error
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// GeneralKnowledgeLoader loads committed general knowledge entries for indexing.
type GeneralKnowledgeLoader interface {
	GetByID(ctx context.Context, id string) (*domain.GeneralKnowledge, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// MemberLoader loads committed community member profiles for indexing.
type MemberLoader interface {
	GetByID(ctx context.Context, id string) (*domain.CommunityMemberProfile, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// Indexer converts committed entries into chunked embedding vectors and
// maintains the chunk store. Indexing is best-effort: an unavailable
// embedding provider degrades to a skip, never an error, so the relational
// commit remains the source of truth.
type Indexer struct {
	general  GeneralKnowledgeLoader
	members  MemberLoader
	chunks   ChunkStore
	embedder EmbeddingClient
	maxChars int
}

// NewIndexer creates a new Indexer instance
func NewIndexer(general GeneralKnowledgeLoader, members MemberLoader, chunks ChunkStore, embedder EmbeddingClient) *Indexer {
	return &Indexer{
		general:  general,
		members:  members,
		chunks:   chunks,
		embedder: embedder,
		maxChars: DefaultChunkMaxChars,
	}
}

// IsReady reports whether both the chunk store and the embedding provider
// are reachable.
func (ix *Indexer) IsReady(ctx context.Context) bool {
	if !ix.embedder.Available() {
		return false
	}
	return ix.chunks.Ping(ctx) == nil
}

// UpsertEntry rebuilds the full chunk set for one entry. Returns false when
// indexing was skipped because the embedding provider is unavailable or no
// chunk produced a vector; the entry itself remains committed either way.
func (ix *Indexer) UpsertEntry(ctx context.Context, kind domain.IndexEntryKind, entryID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.UpsertEntry", telemetry.SpanAttributes{
		EntryID:   entryID,
		Operation: "upsert",
	})
	defer span.End()

	if !ix.embedder.Available() {
		log.Printf("indexer: embedding provider unavailable, skipping entry %s", entryID)
		return false, nil
	}

	doc, err := ix.loadDocument(ctx, kind, entryID)
	if err != nil {
		span.SetError(err)
		return false, err
	}

	text, structured := BuildDocumentText(doc)
	if !structured {
		log.Printf("indexer: entry %s has unrecognized category %q, indexing raw content", entryID, doc.Category)
	}

	pieces := ChunkText(text, ix.maxChars)
	if len(pieces) == 0 {
		// Nothing to index; clear any stale chunks from a previous version.
		if err := ix.chunks.DeleteChunks(ctx, entryID); err != nil {
			span.SetError(err)
			return false, err
		}
		return true, nil
	}

	chunks := make([]domain.WorldBookChunk, 0, len(pieces))
	now := time.Now().UTC()
	for i, piece := range pieces {
		embedding, err := ix.embedder.GenerateEmbedding(ctx, piece)
		if err != nil {
			// Skip the failed chunk; the rest of the entry still indexes.
			log.Printf("indexer: embedding failed for chunk %d of entry %s: %v", i, entryID, err)
			continue
		}
		chunks = append(chunks, domain.WorldBookChunk{
			EntryID:    entryID,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  embedding,
			Metadata:   doc.Metadata,
			CreatedAt:  now,
		})
	}

	if len(chunks) == 0 {
		log.Printf("indexer: no chunk of entry %s produced a vector, skipping", entryID)
		return false, nil
	}

	if err := ix.chunks.ReplaceChunks(ctx, entryID, chunks); err != nil {
		span.SetError(err)
		return false, fmt.Errorf("failed to replace chunks for entry %s: %w", entryID, err)
	}

	log.Printf("indexer: indexed entry %s (%d chunks)", entryID, len(chunks))
	return true, nil
}

// DeleteEntry removes all chunks of an entry from the index. Deleting an
// entry that was never indexed is a no-op.
func (ix *Indexer) DeleteEntry(ctx context.Context, entryID string) error {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.DeleteEntry", telemetry.SpanAttributes{
		EntryID:   entryID,
		Operation: "delete",
	})
	defer span.End()

	if err := ix.chunks.DeleteChunks(ctx, entryID); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// RebuildAll drops the whole index and re-indexes every committed entry.
// Per-entry failures are logged and counted, not fatal.
func (ix *Indexer) RebuildAll(ctx context.Context) (indexed int, failed int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.RebuildAll", telemetry.SpanAttributes{
		Operation: "rebuild",
	})
	defer span.End()

	if !ix.embedder.Available() {
		return 0, 0, domain.ErrEmbedderUnavailable
	}

	if err := ix.chunks.DeleteAll(ctx); err != nil {
		span.SetError(err)
		return 0, 0, fmt.Errorf("failed to clear index: %w", err)
	}

	kinds := []domain.IndexEntryKind{domain.IndexEntryKindGeneral, domain.IndexEntryKindMember}
	for _, kind := range kinds {
		ids, err := ix.listIDs(ctx, kind)
		if err != nil {
			span.SetError(err)
			return indexed, failed, err
		}
		for _, id := range ids {
			ok, err := ix.UpsertEntry(ctx, kind, id)
			if err != nil || !ok {
				failed++
				if err != nil {
					log.Printf("indexer: rebuild failed for entry %s: %v", id, err)
				}
				continue
			}
			indexed++
		}
	}

	log.Printf("indexer: rebuild complete (indexed: %d, failed: %d)", indexed, failed)
	return indexed, failed, nil
}

func (ix *Indexer) loadDocument(ctx context.Context, kind domain.IndexEntryKind, entryID string) (*DocumentEntry, error) {
	switch kind {
	case domain.IndexEntryKindGeneral:
		entry, err := ix.general.GetByID(ctx, entryID)
		if err != nil {
			return nil, err
		}
		return &DocumentEntry{
			ID:       entry.ID,
			Title:    entry.Title,
			Name:     entry.Name,
			Category: entry.CategoryName,
			Content:  entry.Content,
			Aliases:  entry.Aliases,
			RefersTo: entry.RefersTo,
			Metadata: domain.ChunkMetadata{
				Category:    entry.CategoryName,
				Source:      "general_knowledge",
				Contributor: entry.ContributorID,
			},
		}, nil
	case domain.IndexEntryKindMember:
		profile, err := ix.members.GetByID(ctx, entryID)
		if err != nil {
			return nil, err
		}
		return &DocumentEntry{
			ID:        profile.ID,
			Title:     profile.Title,
			Name:      profile.Content["name"],
			Category:  CategoryCommunityMember,
			Content:   profile.Content,
			Nicknames: profile.Nicknames,
			Metadata: domain.ChunkMetadata{
				Category: CategoryCommunityMember,
				Source:   "community_member",
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown index entry kind %q: %w", kind, errors.ErrUnsupported)
	}
}

func (ix *Indexer) listIDs(ctx context.Context, kind domain.IndexEntryKind) ([]string, error) {
	if kind == domain.IndexEntryKindGeneral {
		return ix.general.ListIDs(ctx)
	}
	return ix.members.ListIDs(ctx)
}
