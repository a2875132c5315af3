package services

import (
	"time"

	"streamhub/internal/domain"
)

// JoinDecision is the outcome of a successful join guard.
type JoinDecision int

const (
	DecisionAutoApprove JoinDecision = iota + 1
	DecisionRequiresApproval
)

func (d JoinDecision) String() string {
	switch d {
	case DecisionAutoApprove:
		return "auto-approve"
	case DecisionRequiresApproval:
		return "requires-approval"
	}
	return "unknown"
}

// StreamAccessPolicy holds the guard checks every mutating operation runs before touching state.
// It reads only what it is given and never mutates.
type StreamAccessPolicy struct {
	now func() time.Time
}

// NewStreamAccessPolicy returns a policy evaluated against clock. A nil clock uses time.Now.
func NewStreamAccessPolicy(clock func() time.Time) *StreamAccessPolicy {
	if clock == nil {
		clock = time.Now
	}
	return &StreamAccessPolicy{now: clock}
}

// Now returns the policy clock's current time.
func (p *StreamAccessPolicy) Now() time.Time {
	return p.now()
}

// CanActOnStream guards organizer operations: update, cancel, delete, reschedule and visibility changes.
func (p *StreamAccessPolicy) CanActOnStream(stream *domain.Stream, actorID string) error {
	if err := checkExists(stream); err != nil {
		return err
	}
	if stream.OrganizerID != actorID {
		return domain.ErrOwnershipViolation
	}
	return p.checkOpen(stream)
}

// CanActOnUpcomingStream is CanActOnStream plus "not currently live".
func (p *StreamAccessPolicy) CanActOnUpcomingStream(stream *domain.Stream, actorID string) error {
	if err := p.CanActOnStream(stream, actorID); err != nil {
		return err
	}
	if stream.IsOngoing(p.now()) {
		return domain.ErrStreamOngoing
	}
	return nil
}

// CanRequestToJoin guards the request-to-join path and tells the caller whether approval is needed.
func (p *StreamAccessPolicy) CanRequestToJoin(stream *domain.Stream, actorID string) (JoinDecision, error) {
	if err := checkExists(stream); err != nil {
		return 0, err
	}
	// The organizer is implicitly a member.
	if stream.OrganizerID == actorID {
		return 0, domain.ErrOwnershipViolation
	}
	if err := p.checkOpen(stream); err != nil {
		return 0, err
	}
	if stream.Visibility.RequiresApproval() {
		return DecisionRequiresApproval, nil
	}
	return DecisionAutoApprove, nil
}

// CanJoinDirectly guards the direct-join path. Strictly PRIVATE streams refuse it.
func (p *StreamAccessPolicy) CanJoinDirectly(stream *domain.Stream, actorID string) (JoinDecision, error) {
	decision, err := p.CanRequestToJoin(stream, actorID)
	if err != nil {
		return 0, err
	}
	if stream.Visibility == domain.VisibilityPrivate {
		return 0, domain.ErrCannotJoinPrivateStream
	}
	return decision, nil
}

// CanLeaveStream guards mark-not-attending: the stream must still be open.
func (p *StreamAccessPolicy) CanLeaveStream(stream *domain.Stream) error {
	if err := checkExists(stream); err != nil {
		return err
	}
	return p.checkOpen(stream)
}

// CheckNotAlreadyAttendee rejects a join or request when the existing record already
// has a pending request or is an approved, attending member. A nil record, or one
// that is not attending, allows a re-join.
func (p *StreamAccessPolicy) CheckNotAlreadyAttendee(existing *domain.StreamAttendee) error {
	if existing == nil {
		return nil
	}
	switch {
	case existing.RequestToJoinStatus == domain.RequestPending:
		return &domain.RequestStatusError{Err: domain.ErrAlreadyRequestedToJoin, Status: existing.RequestToJoinStatus}
	case existing.RequestToJoinStatus == domain.RequestApproved && existing.IsAttending:
		return &domain.RequestStatusError{Err: domain.ErrAlreadyApprovedRequestToJoin, Status: existing.RequestToJoinStatus}
	}
	return nil
}

// CanProcessRequest allows an organizer decision only on unresolved requests.
func (p *StreamAccessPolicy) CanProcessRequest(attendee *domain.StreamAttendee) error {
	switch attendee.RequestToJoinStatus {
	case domain.RequestPending, domain.RequestDisapproved:
		return nil
	}
	return domain.ErrFailedOperation
}

// checkExists treats a deleted stream as absent.
func checkExists(stream *domain.Stream) error {
	if stream == nil || stream.Status == domain.StreamStatusDeleted {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (p *StreamAccessPolicy) checkOpen(stream *domain.Stream) error {
	if stream.Status == domain.StreamStatusCanceled {
		return domain.ErrStreamAlreadyCanceled
	}
	if stream.HasEnded(p.now()) {
		return domain.ErrStreamAlreadyHappened
	}
	return nil
}
