package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid input")
	ErrThrottled    = errors.New("rate limit exceeded")
	ErrConflict     = errors.New("state conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ConflictError reports a rejected review transition together with the
// state the document was actually in, so the caller can re-fetch and retry.
type ConflictError struct {
	DocumentID         string
	Status             DocumentStatus
	AssignedReviewerID *string
}

func (e *ConflictError) Error() string {
	if e.AssignedReviewerID != nil {
		return fmt.Sprintf("document %s: %s: status=%s assigned_to=%s",
			e.DocumentID, ErrConflict, e.Status, *e.AssignedReviewerID)
	}
	return fmt.Sprintf("document %s: %s: status=%s", e.DocumentID, ErrConflict, e.Status)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
