package domain

import (
	"context"
	"time"
)

// RequestToJoinStatus is the approval state of an attendee's join request.
type RequestToJoinStatus string

const (
	RequestPending     RequestToJoinStatus = "PENDING"
	RequestApproved    RequestToJoinStatus = "APPROVED"
	RequestDisapproved RequestToJoinStatus = "DISAPPROVED"
)

// Valid reports whether s is a known request status.
func (s RequestToJoinStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestDisapproved:
		return true
	}
	return false
}

// StreamAttendee is a member's relationship record to a stream. Unique per (stream, member).
// Records are never deleted; leaving a stream clears IsAttending.
// swagger:model StreamAttendee
type StreamAttendee struct {
	ID                  string              `json:"id"`
	StreamID            string              `json:"stream_id"`
	MemberID            string              `json:"member_id"`
	RequestToJoinStatus RequestToJoinStatus `json:"request_to_join_status"`
	IsAttending         bool                `json:"is_attending"`
	IsSpeaker           bool                `json:"is_speaker"`
	IsOrganizer         bool                `json:"is_organizer"`
	AttendeeComment     string              `json:"attendee_comment,omitempty"`
	OrganizerComment    string              `json:"organizer_comment,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewStreamAttendee creates a record in the given state. ID is set by the repository on create.
func NewStreamAttendee(streamID, memberID string, status RequestToJoinStatus, attending bool, comment string, now time.Time) *StreamAttendee {
	return &StreamAttendee{
		StreamID:            streamID,
		MemberID:            memberID,
		RequestToJoinStatus: status,
		IsAttending:         attending,
		AttendeeComment:     comment,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Counted reports whether the record contributes to the stream's total-attendees counter.
func (a *StreamAttendee) Counted() bool {
	return a.RequestToJoinStatus == RequestApproved && a.IsAttending
}

// AttendanceSummary is the aggregate view returned alongside an attendee transition.
type AttendanceSummary struct {
	StreamID            string              `json:"stream_id"`
	TotalAttendees      int64               `json:"total_attendees"`
	RequestToJoinStatus RequestToJoinStatus `json:"request_to_join_status"`
	IsAttending         bool                `json:"is_attending"`
}

// AttendanceResult bundles the attendee record with the stream's attendance summary.
type AttendanceResult struct {
	Attendee *StreamAttendee   `json:"attendee"`
	Summary  AttendanceSummary `json:"summary"`
}

// OrganizerDecision is the organizer's verdict on a join request.
type OrganizerDecision string

const (
	DecisionApprove    OrganizerDecision = "APPROVE"
	DecisionDisapprove OrganizerDecision = "DISAPPROVE"
)

// Valid reports whether d is a known decision.
func (d OrganizerDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionDisapprove
}

// StreamAttendeeRepository defines storage operations for stream attendees.
type StreamAttendeeRepository interface {
	// Create inserts the record; a (stream, member) conflict returns ErrDuplicateAttendee.
	Create(ctx context.Context, attendee *StreamAttendee) error
	GetByID(ctx context.Context, id string) (*StreamAttendee, error)
	GetByStreamAndMember(ctx context.Context, streamID, memberID string) (*StreamAttendee, error)
	// Update persists status, attendance flags and comments.
	Update(ctx context.Context, attendee *StreamAttendee) error
	ListByStream(ctx context.Context, streamID string, status RequestToJoinStatus, page PaginationParams) ([]*StreamAttendee, int, error)
	// ApprovePending moves every PENDING record of the stream to APPROVED+attending and returns them.
	ApprovePending(ctx context.Context, streamID string) ([]*StreamAttendee, error)
	CountAttending(ctx context.Context, streamID string) (int64, error)
}

// AttendanceService owns the attendee state machine.
type AttendanceService interface {
	// Join is the direct-join entry point; it auto-approves on PUBLIC streams and
	// falls back to a join request on PROTECTED streams.
	Join(ctx context.Context, streamID, actorID, comment string) (*AttendanceResult, error)
	RequestToJoin(ctx context.Context, streamID, actorID, comment string) (*AttendanceResult, error)
	ProcessRequest(ctx context.Context, streamID, organizerID, attendeeID string, decision OrganizerDecision, comment string) (*AttendanceResult, error)
	MarkNotAttending(ctx context.Context, streamID, actorID string) (*AttendanceResult, error)
	ListAttendees(ctx context.Context, streamID, actorID string, status RequestToJoinStatus, page PaginationParams) (*AttendeePage, error)
	// VerifyCounter recounts APPROVED+attending records and reports whether the stored counter matches.
	VerifyCounter(ctx context.Context, streamID string) (stored, counted int64, err error)
}
