package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the requested quiz does not exist (locally or remotely).
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotSignedIn is returned when an operation requires an authenticated session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrSyncRateLimited is returned when the sliding-window attempt cap is exhausted.
	ErrSyncRateLimited = errors.New("sync attempts rate limited")
	// ErrAttemptFinished is returned for transitions on an already finished attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrAnswerLocked is returned when a checked practice answer is changed before advancing.
	ErrAnswerLocked = errors.New("answer locked after check")
	// ErrCheckUnavailable is returned when Check is called outside practice mode.
	ErrCheckUnavailable = errors.New("check requires practice mode")
	// ErrNotQuizOwner rejects writes to a quiz owned by someone else.
	ErrNotQuizOwner = errors.New("not the quiz owner")
	// ErrTokenRevoked is returned for a structurally valid token whose session was ended.
	ErrTokenRevoked = errors.New("token revoked")
)

// ErrorCategory classifies failures from the remote backend and the drive
// backup so the reconciliation engine can decide between retry and abort.
type ErrorCategory string

const (
	CategoryUnauthenticated ErrorCategory = "unauthenticated"
	CategoryForbidden       ErrorCategory = "forbidden"
	CategoryRateLimited     ErrorCategory = "rate_limited"
	CategoryNetwork         ErrorCategory = "network"
	CategoryNotFound        ErrorCategory = "not_found"
	CategoryGeneric         ErrorCategory = "generic"
)

// RemoteError wraps a categorized failure from an external collaborator.
type RemoteError struct {
	Category ErrorCategory
	Status   int // HTTP status when applicable, 0 otherwise
	Message  string
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote %s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("remote %s", e.Category)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError builds a categorized remote failure.
func NewRemoteError(cat ErrorCategory, status int, msg string, err error) *RemoteError {
	return &RemoteError{Category: cat, Status: status, Message: msg, Err: err}
}

// CategoryOf extracts the error category, defaulting to generic.
func CategoryOf(err error) ErrorCategory {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryGeneric
}

// IsRetryable reports whether a sync failure is worth another attempt.
// Authorization problems require re-authentication and rate limits roll over
// on their own, so neither is retried.
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case CategoryUnauthenticated, CategoryForbidden, CategoryRateLimited, CategoryNotFound:
		return false
	default:
		return true
	}
}

// ValidationError rejects a malformed quiz before it reaches any store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid quiz: %s: %s", e.Field, e.Reason)
}
