package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockChunkStore is a mock implementation of ChunkStore
type MockChunkStore struct {
	mock.Mock
}

func (m *MockChunkStore) ReplaceChunks(ctx context.Context, entryID string, chunks []domain.WorldBookChunk) error {
	args := m.Called(ctx, entryID, chunks)
	return args.Error(0)
}

func (m *MockChunkStore) DeleteChunks(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *MockChunkStore) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChunkStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func sampleGeneralKnowledge(id string) *domain.GeneralKnowledge {
	return &domain.GeneralKnowledge{
		ID:            id,
		Title:         "周五语音夜",
		Name:          "周五语音夜",
		Content:       map[string]string{"description": "每周五晚八点的语音活动。大家一起聊天打游戏。"},
		CategoryID:    1,
		CategoryName:  CategoryCommunityInfo,
		Aliases:       []string{"语音趴"},
		ContributorID: "user-1",
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newIndexerFixture() (*Indexer, *MockGeneralKnowledgeRepository, *MockMemberRepository, *MockChunkStore, *MockEmbeddingClient) {
	generalRepo := new(MockGeneralKnowledgeRepository)
	memberRepo := new(MockMemberRepository)
	chunkStore := new(MockChunkStore)
	embedder := new(MockEmbeddingClient)
	return NewIndexer(generalRepo, memberRepo, chunkStore, embedder), generalRepo, memberRepo, chunkStore, embedder
}

func TestIndexer_UpsertEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces chunk set with one chunk per text piece", func(t *testing.T) {
		indexer, generalRepo, _, chunkStore, embedder := newIndexerFixture()
		entry := sampleGeneralKnowledge("entry-1")

		embedder.On("Available").Return(true)
		generalRepo.On("GetByID", mock.Anything, "entry-1").Return(entry, nil)
		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)

		text, _ := BuildDocumentText(&DocumentEntry{
			ID: entry.ID, Title: entry.Title, Name: entry.Name,
			Category: entry.CategoryName, Content: entry.Content,
			Aliases: entry.Aliases,
		})
		wantChunks := len(ChunkText(text, DefaultChunkMaxChars))

		chunkStore.On("ReplaceChunks", mock.Anything, "entry-1", mock.MatchedBy(func(chunks []domain.WorldBookChunk) bool {
			if len(chunks) != wantChunks {
				return false
			}
			for i, chunk := range chunks {
				if chunk.EntryID != "entry-1" || chunk.ChunkIndex != i || len(chunk.Embedding) == 0 {
					return false
				}
				if chunk.Metadata.Category != CategoryCommunityInfo || chunk.Metadata.Source != "general_knowledge" {
					return false
				}
			}
			return true
		})).Return(nil)

		ok, err := indexer.UpsertEntry(ctx, domain.IndexEntryKindGeneral, "entry-1")

		require.NoError(t, err)
		assert.True(t, ok)
		chunkStore.AssertExpectations(t)
	})

	t.Run("member profiles index under the community member category", func(t *testing.T) {
		indexer, _, memberRepo, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(true)
		memberRepo.On("GetByID", mock.Anything, "community_阿伟_1700000000").Return(&domain.CommunityMemberProfile{
			ID:        "community_阿伟_1700000000",
			Title:     "社区成员档案 - 阿伟",
			Content:   map[string]string{"name": "阿伟", "personality": "开朗"},
			Nicknames: []string{"阿伟"},
		}, nil)
		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.3}, nil)
		chunkStore.On("ReplaceChunks", mock.Anything, "community_阿伟_1700000000", mock.MatchedBy(func(chunks []domain.WorldBookChunk) bool {
			return len(chunks) > 0 && chunks[0].Metadata.Category == CategoryCommunityMember
		})).Return(nil)

		ok, err := indexer.UpsertEntry(ctx, domain.IndexEntryKindMember, "community_阿伟_1700000000")

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("skips without error when embedder is unavailable", func(t *testing.T) {
		indexer, generalRepo, _, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(false)

		ok, err := indexer.UpsertEntry(ctx, domain.IndexEntryKindGeneral, "entry-1")

		require.NoError(t, err)
		assert.False(t, ok)
		generalRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		chunkStore.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips when every chunk fails to embed", func(t *testing.T) {
		indexer, generalRepo, _, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(true)
		generalRepo.On("GetByID", mock.Anything, "entry-1").Return(sampleGeneralKnowledge("entry-1"), nil)
		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

		ok, err := indexer.UpsertEntry(ctx, domain.IndexEntryKindGeneral, "entry-1")

		require.NoError(t, err)
		assert.False(t, ok)
		chunkStore.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("propagates missing entry", func(t *testing.T) {
		indexer, generalRepo, _, _, embedder := newIndexerFixture()

		embedder.On("Available").Return(true)
		generalRepo.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrKnowledgeEntryNotFound)

		ok, err := indexer.UpsertEntry(ctx, domain.IndexEntryKindGeneral, "gone")

		require.Error(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrKnowledgeEntryNotFound)
	})
}

func TestIndexer_DeleteEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the entry's chunks", func(t *testing.T) {
		indexer, _, _, chunkStore, _ := newIndexerFixture()

		chunkStore.On("DeleteChunks", mock.Anything, "entry-1").Return(nil)

		require.NoError(t, indexer.DeleteEntry(ctx, "entry-1"))
		chunkStore.AssertExpectations(t)
	})
}

func TestIndexer_RebuildAll(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the index and re-indexes every entry of both kinds", func(t *testing.T) {
		indexer, generalRepo, memberRepo, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(true)
		chunkStore.On("DeleteAll", mock.Anything).Return(nil)
		generalRepo.On("ListIDs", mock.Anything).Return([]string{"entry-1"}, nil)
		memberRepo.On("ListIDs", mock.Anything).Return([]string{"community_阿伟_1700000000"}, nil)
		generalRepo.On("GetByID", mock.Anything, "entry-1").Return(sampleGeneralKnowledge("entry-1"), nil)
		memberRepo.On("GetByID", mock.Anything, "community_阿伟_1700000000").Return(&domain.CommunityMemberProfile{
			ID:        "community_阿伟_1700000000",
			Title:     "社区成员档案 - 阿伟",
			Content:   map[string]string{"name": "阿伟"},
			Nicknames: []string{"阿伟"},
		}, nil)
		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		chunkStore.On("ReplaceChunks", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		indexed, failed, err := indexer.RebuildAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, indexed)
		assert.Equal(t, 0, failed)
		chunkStore.AssertExpectations(t)
	})

	t.Run("counts per-entry failures without aborting", func(t *testing.T) {
		indexer, generalRepo, memberRepo, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(true)
		chunkStore.On("DeleteAll", mock.Anything).Return(nil)
		generalRepo.On("ListIDs", mock.Anything).Return([]string{"gone", "entry-1"}, nil)
		memberRepo.On("ListIDs", mock.Anything).Return([]string{}, nil)
		generalRepo.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrKnowledgeEntryNotFound)
		generalRepo.On("GetByID", mock.Anything, "entry-1").Return(sampleGeneralKnowledge("entry-1"), nil)
		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		chunkStore.On("ReplaceChunks", mock.Anything, "entry-1", mock.Anything).Return(nil)

		indexed, failed, err := indexer.RebuildAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, indexed)
		assert.Equal(t, 1, failed)
	})

	t.Run("refuses to rebuild without an embedding provider", func(t *testing.T) {
		indexer, _, _, chunkStore, embedder := newIndexerFixture()

		embedder.On("Available").Return(false)

		_, _, err := indexer.RebuildAll(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbedderUnavailable)
		chunkStore.AssertNotCalled(t, "DeleteAll", mock.Anything)
	})
}

func TestIndexer_IsReady(t *testing.T) {
	ctx := context.Background()

	t.Run("ready when embedder and chunk store respond", func(t *testing.T) {
		indexer, _, _, chunkStore, embedder := newIndexerFixture()
		embedder.On("Available").Return(true)
		chunkStore.On("Ping", mock.Anything).Return(nil)

		assert.True(t, indexer.IsReady(ctx))
	})

	t.Run("not ready when chunk store is unreachable", func(t *testing.T) {
		indexer, _, _, chunkStore, embedder := newIndexerFixture()
		embedder.On("Available").Return(true)
		chunkStore.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		assert.False(t, indexer.IsReady(ctx))
	})
}
