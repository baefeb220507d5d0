package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
	mu        sync.Mutex
	callCount int
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockJobProcessor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockIndexJobRepository is a mock implementation of IndexJobRepository
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IndexJob), args.Error(1)
}

func (m *MockIndexJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockIndexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockIndexService is a mock implementation of IndexService
type MockIndexService struct {
	mock.Mock
}

func (m *MockIndexService) UpsertEntry(ctx context.Context, kind domain.IndexEntryKind, entryID string) (bool, error) {
	args := m.Called(ctx, kind, entryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIndexService) DeleteEntry(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func TestWorker_StartAndStop(t *testing.T) {
	t.Run("processes jobs on each tick until stopped", func(t *testing.T) {
		processor := new(MockJobProcessor)
		processor.On("ProcessJobs", mock.Anything).Return(nil)

		worker := NewWorker("test", processor, 10*time.Millisecond)
		go worker.Start(context.Background())

		time.Sleep(50 * time.Millisecond)
		worker.Stop()

		assert.GreaterOrEqual(t, processor.calls(), 2)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		processor := new(MockJobProcessor)
		processor.On("ProcessJobs", mock.Anything).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		worker := NewWorker("test", processor, 10*time.Millisecond)

		done := make(chan struct{})
		go func() {
			worker.Start(ctx)
			close(done)
		}()

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop after context cancellation")
		}
	})

	t.Run("keeps running after a processing error", func(t *testing.T) {
		processor := new(MockJobProcessor)
		processor.On("ProcessJobs", mock.Anything).Return(errors.New("transient failure"))

		worker := NewWorker("test", processor, 10*time.Millisecond)
		go worker.Start(context.Background())

		time.Sleep(50 * time.Millisecond)
		worker.Stop()

		assert.GreaterOrEqual(t, processor.calls(), 2)
	})
}

func TestIndexWorker_ProcessJobs(t *testing.T) {
	ctx := context.Background()

	pendingJob := func(op domain.IndexOp, retries int32) *domain.IndexJob {
		return &domain.IndexJob{
			ID:        "job-1",
			EntryID:   "entry-1",
			EntryKind: domain.IndexEntryKindGeneral,
			Op:        op,
			Status:    domain.IndexJobStatusProcessing,
			Retries:   retries,
		}
	}

	t.Run("completes upsert job when entry indexes", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{pendingJob(domain.IndexOpUpsert, 0)}, nil)
		indexer.On("UpsertEntry", mock.Anything, domain.IndexEntryKindGeneral, "entry-1").Return(true, nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusCompleted, "").Return(nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("completes delete job", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{pendingJob(domain.IndexOpDelete, 0)}, nil)
		indexer.On("DeleteEntry", mock.Anything, "entry-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusCompleted, "").Return(nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("resets failed job to pending below max retries", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{pendingJob(domain.IndexOpUpsert, 0)}, nil)
		indexer.On("UpsertEntry", mock.Anything, domain.IndexEntryKindGeneral, "entry-1").Return(false, errors.New("embedding timeout"))
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusPending, mock.MatchedBy(func(msg string) bool {
			return msg != ""
		})).Return(nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("marks job failed at max retries", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{pendingJob(domain.IndexOpUpsert, MaxRetries-1)}, nil)
		indexer.On("UpsertEntry", mock.Anything, domain.IndexEntryKindGeneral, "entry-1").Return(false, errors.New("embedding timeout"))
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusFailed, mock.MatchedBy(func(msg string) bool {
			return msg != ""
		})).Return(nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("skipped upsert retries instead of completing", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{pendingJob(domain.IndexOpUpsert, 0)}, nil)
		// Upsert reports the embedding provider unavailable.
		indexer.On("UpsertEntry", mock.Anything, domain.IndexEntryKindGeneral, "entry-1").Return(false, nil)
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusPending, mock.Anything).Return(nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, "job-1", domain.IndexJobStatusCompleted, mock.Anything)
	})

	t.Run("no pending jobs is a quiet no-op", func(t *testing.T) {
		repo := new(MockIndexJobRepository)
		indexer := new(MockIndexService)
		worker := NewIndexWorker(repo, indexer)

		repo.On("ClaimPending", mock.Anything, claimBatchSize).Return([]*domain.IndexJob{}, nil)

		assert.NoError(t, worker.ProcessJobs(ctx))
		indexer.AssertNotCalled(t, "UpsertEntry", mock.Anything, mock.Anything, mock.Anything)
	})
}
