package engine

import (
	"errors"
	"fmt"
)

// SyncError represents an error detected during synchronization.
//
// Sync errors include:
//   - Identity conflict: a duplicate create response for an already-mapped
//     ephemeral id
//   - Drift sync failure: the one-shot follow-up update after identity
//     resolution failed
//   - Write failure: an update/delete failed after the optimistic local
//     apply
//   - Validation: the mutation was rejected before any network call
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// DocID identifies the affected document.
	DocID string

	// EntityID identifies the affected element or section, if any.
	EntityID string

	// Err is the underlying cause, if any.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeIdentityConflict indicates a duplicate mapping attempt for an
	// already-bound ephemeral id.
	ErrCodeIdentityConflict SyncErrorCode = "IDENTITY_CONFLICT"

	// ErrCodeDriftSyncFailed indicates the post-creation drift update failed.
	ErrCodeDriftSyncFailed SyncErrorCode = "DRIFT_SYNC_FAILED"

	// ErrCodeWriteFailed indicates a persistence call failed after the
	// optimistic local mutation was applied.
	ErrCodeWriteFailed SyncErrorCode = "WRITE_FAILED"

	// ErrCodeValidation indicates the mutation was rejected synchronously.
	ErrCodeValidation SyncErrorCode = "VALIDATION"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (doc=%s, entity=%s)", e.Code, e.Message, e.DocID, e.EntityID)
	}
	if e.DocID != "" {
		return fmt.Sprintf("%s: %s (doc=%s)", e.Code, e.Message, e.DocID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsIdentityConflict returns true if the error is an identity conflict.
// Uses errors.As to handle wrapped errors.
func IsIdentityConflict(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == ErrCodeIdentityConflict
	}
	return false
}

// IsValidation returns true if the error is a synchronous validation
// rejection.
func IsValidation(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == ErrCodeValidation
	}
	return false
}

// NewValidationError creates a SyncError for a rejected mutation.
func NewValidationError(docID, message string, err error) *SyncError {
	return &SyncError{
		Code:    ErrCodeValidation,
		Message: message,
		DocID:   docID,
		Err:     err,
	}
}
