package domain

import (
	"fmt"
	"time"
)

// IndexJobStatus represents the status of an index job
type IndexJobStatus string

const (
	IndexJobStatusPending    IndexJobStatus = "pending"
	IndexJobStatusProcessing IndexJobStatus = "processing"
	IndexJobStatusCompleted  IndexJobStatus = "completed"
	IndexJobStatusFailed     IndexJobStatus = "failed"
)

// IndexEntryKind tells the worker which store the entry lives in
type IndexEntryKind string

const (
	IndexEntryKindGeneral IndexEntryKind = "general"
	IndexEntryKindMember  IndexEntryKind = "member"
)

// IndexOp is the operation an index job performs against the vector index
type IndexOp string

const (
	IndexOpUpsert IndexOp = "upsert"
	IndexOpDelete IndexOp = "delete"
)

// IndexJob is an outbox row recording that an entry must be (re)projected
// into or removed from the vector index. Jobs are written in the same
// transaction as the relational commit and consumed by a background worker,
// so indexing failures are observable and retryable.
type IndexJob struct {
	ID          string
	EntryID     string
	EntryKind   IndexEntryKind
	Op          IndexOp
	Status      IndexJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateIndexJob validates an IndexJob instance
func ValidateIndexJob(j *IndexJob) error {
	if j == nil {
		return fmt.Errorf("index job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("index job ID is required")
	}

	if j.EntryID == "" {
		return fmt.Errorf("index job EntryID is required")
	}

	if j.EntryKind != IndexEntryKindGeneral && j.EntryKind != IndexEntryKindMember {
		return fmt.Errorf("index job EntryKind is invalid: %s", j.EntryKind)
	}

	if j.Op != IndexOpUpsert && j.Op != IndexOpDelete {
		return fmt.Errorf("index job Op is invalid: %s", j.Op)
	}

	if !isValidIndexJobStatus(j.Status) {
		return fmt.Errorf("index job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("index job Retries cannot be negative")
	}

	return nil
}

// isValidIndexJobStatus checks if an IndexJobStatus is valid
func isValidIndexJobStatus(s IndexJobStatus) bool {
	switch s {
	case IndexJobStatusPending, IndexJobStatusProcessing,
		IndexJobStatusCompleted, IndexJobStatusFailed:
		return true
	}
	return false
}
