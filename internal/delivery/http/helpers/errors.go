package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"streamhub/internal/domain"
)

// Codes for stream orchestration failures. Each domain error kind has its own code.
const (
	ErrCodeStreamNotFound          = "stream_not_found"
	ErrCodeAttendeeNotFound        = "attendee_not_found"
	ErrCodeMemberNotFound          = "member_not_found"
	ErrCodeOwnershipViolation      = "ownership_violation"
	ErrCodeStreamAlreadyHappened   = "stream_already_happened"
	ErrCodeStreamAlreadyCanceled   = "stream_already_canceled"
	ErrCodeStreamOngoing           = "stream_ongoing"
	ErrCodeCannotJoinPrivateStream = "cannot_join_private_stream_without_approval"
	ErrCodeAlreadyRequested        = "already_requested_to_join"
	ErrCodeAlreadyApproved         = "already_approved_request_to_join"
	ErrCodeFailedOperation         = "failed_operation"
	ErrCodeExternalSync            = "external_sync_failed"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins.
var domainErrors = []errorMapping{
	{domain.ErrStreamNotFound, http.StatusNotFound, ErrCodeStreamNotFound},
	{domain.ErrAttendeeNotFound, http.StatusNotFound, ErrCodeAttendeeNotFound},
	{domain.ErrMemberNotFound, http.StatusNotFound, ErrCodeMemberNotFound},
	{domain.ErrOwnershipViolation, http.StatusForbidden, ErrCodeOwnershipViolation},
	{domain.ErrCannotJoinPrivateStream, http.StatusForbidden, ErrCodeCannotJoinPrivateStream},
	{domain.ErrStreamAlreadyHappened, http.StatusGone, ErrCodeStreamAlreadyHappened},
	{domain.ErrStreamAlreadyCanceled, http.StatusConflict, ErrCodeStreamAlreadyCanceled},
	{domain.ErrStreamOngoing, http.StatusLocked, ErrCodeStreamOngoing},
	{domain.ErrAlreadyRequestedToJoin, http.StatusConflict, ErrCodeAlreadyRequested},
	{domain.ErrAlreadyApprovedRequestToJoin, http.StatusConflict, ErrCodeAlreadyApproved},
	{domain.ErrFailedOperation, http.StatusUnprocessableEntity, ErrCodeFailedOperation},
	{domain.ErrExternalSync, http.StatusBadGateway, ErrCodeExternalSync},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
}

// WriteDomainError maps err onto its status and code. Unknown errors are logged and
// answered with 500 without leaking their message.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range domainErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		apiErr := &APIError{Code: m.code, Message: err.Error()}
		var statusErr *domain.RequestStatusError
		if errors.As(err, &statusErr) {
			apiErr.Status = string(statusErr.Status)
		}
		if m.status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		}
		writeAPIError(w, m.status, apiErr)
		return
	}
	logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
}
