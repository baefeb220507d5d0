package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeTransientUnavailable = "TRANSIENT_UNAVAILABLE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeInvalidOperation     = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidEntryType      = NewDomainError(ErrCodeValidation, "invalid pending entry type")
	ErrInvalidPendingStatus  = NewDomainError(ErrCodeValidation, "invalid pending entry status")
	ErrInvalidIndexJobStatus = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrPendingEntryNotFound     = NewDomainError(ErrCodeNotFound, "pending entry not found")
	ErrKnowledgeEntryNotFound   = NewDomainError(ErrCodeNotFound, "knowledge entry not found")
	ErrMemberProfileNotFound    = NewDomainError(ErrCodeNotFound, "community member profile not found")
	ErrReviewMessageNotFound    = NewDomainError(ErrCodeNotFound, "review message not found")
	ErrReviewMessageNotAttached = NewDomainError(ErrCodeNotFound, "pending entry has no review message attached")
)

// Conflict errors
var (
	// ErrEntryIDConflict signals an id collision on commit. Callers retry
	// once with a regenerated id.
	ErrEntryIDConflict = NewDomainError(ErrCodeConflict, "knowledge entry id already exists")
)

// Transient errors
var (
	ErrIndexUnavailable    = NewDomainError(ErrCodeTransientUnavailable, "vector index backend unavailable")
	ErrEmbedderUnavailable = NewDomainError(ErrCodeTransientUnavailable, "embedding provider unavailable")
)

// Operation errors
var (
	ErrAlreadyResolved = NewDomainError(ErrCodeInvalidOperation, "pending entry already resolved")
)
