package domain

import (
	"errors"
	"fmt"
)

// Repository-level sentinels.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateAttendee = errors.New("attendee already exists for stream and member")
	ErrCounterUnderflow  = errors.New("attendee counter would become negative")
	ErrInvalidInput      = errors.New("invalid input")
)

// Stream orchestration failures. Each maps to a distinct user-facing status.
var (
	ErrStreamNotFound   = errors.New("stream not found")
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrMemberNotFound   = errors.New("member not found")

	ErrOwnershipViolation = errors.New("actor does not have ownership rights for this action")

	ErrStreamAlreadyHappened = errors.New("stream already happened")
	ErrStreamAlreadyCanceled = errors.New("stream already canceled")
	ErrStreamOngoing         = errors.New("stream is ongoing")

	ErrCannotJoinPrivateStream = errors.New("cannot join private stream without approval")

	ErrAlreadyRequestedToJoin       = errors.New("already requested to join")
	ErrAlreadyApprovedRequestToJoin = errors.New("request to join already approved")

	ErrFailedOperation = errors.New("operation failed")

	ErrExternalSync = errors.New("external sync failed")
)

// RequestStatusError is a duplicate-request failure that carries the attendee's current status.
// Status is empty when the status could not be read.
type RequestStatusError struct {
	Err    error
	Status RequestToJoinStatus
}

func (e *RequestStatusError) Error() string {
	if e.Status == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (current status: %s)", e.Err, e.Status)
}

func (e *RequestStatusError) Unwrap() error { return e.Err }

// ExternalSyncError wraps a calendar, broadcast or OAuth2 failure.
type ExternalSyncError struct {
	Operation  SyncOperation
	StreamType StreamType
	Err        error
}

func (e *ExternalSyncError) Error() string {
	return fmt.Sprintf("external sync %s for %s: %v", e.Operation, e.StreamType, e.Err)
}

// Is matches ErrExternalSync so callers need not know the concrete type.
func (e *ExternalSyncError) Is(target error) bool { return target == ErrExternalSync }

func (e *ExternalSyncError) Unwrap() error { return e.Err }
