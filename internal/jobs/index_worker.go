package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/odysseia-chat/worldbook/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed index job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll claims
	claimBatchSize = 20
)

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// ClaimPending retrieves and claims pending index jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)

	// UpdateStatus updates the status of an index job
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// IndexService applies index jobs against the vector index
type IndexService interface {
	UpsertEntry(ctx context.Context, kind domain.IndexEntryKind, entryID string) (bool, error)
	DeleteEntry(ctx context.Context, entryID string) error
}

// IndexWorker drains the indexing outbox: each claimed job projects one
// committed entry into (or out of) the vector index.
type IndexWorker struct {
	repo    IndexJobRepository
	indexer IndexService
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, indexer IndexService) *IndexWorker {
	return &IndexWorker{
		repo:    repo,
		indexer: indexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending index jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	var err error
	switch job.Op {
	case domain.IndexOpUpsert:
		log.Printf("Processing job %s: upsert %s entry %s", job.ID, job.EntryKind, job.EntryID)
		var indexed bool
		indexed, err = w.indexer.UpsertEntry(ctx, job.EntryKind, job.EntryID)
		if err == nil && !indexed {
			// The embedding provider is down; leave the job pending so a
			// later poll picks it up again.
			err = domain.ErrEmbedderUnavailable
		}
	case domain.IndexOpDelete:
		log.Printf("Processing job %s: delete entry %s", job.ID, job.EntryID)
		err = w.indexer.DeleteEntry(ctx, job.EntryID)
	default:
		return fmt.Errorf("job %s has unknown op %q", job.ID, job.Op)
	}

	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
