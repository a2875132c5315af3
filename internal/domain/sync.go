package domain

import (
	"context"
	"time"
)

// SyncOperation names the internal mutation being propagated to an external system.
type SyncOperation string

const (
	SyncCreate                 SyncOperation = "create"
	SyncCreateInstant          SyncOperation = "create_instant"
	SyncPatch                  SyncOperation = "patch"
	SyncDelete                 SyncOperation = "delete"
	SyncCancel                 SyncOperation = "cancel"
	SyncReschedule             SyncOperation = "reschedule"
	SyncVisibilityUpdate       SyncOperation = "visibility_update"
	SyncJoin                   SyncOperation = "join"
	SyncProcessAttendeeRequest SyncOperation = "process_attendee_request"
	SyncNotAttending           SyncOperation = "not_attending"
)

// SyncTarget identifies the stream and its external linkage.
type SyncTarget struct {
	StreamID    string
	StreamType  StreamType
	OrganizerID string
	CalendarID  string
	ExternalID  string
}

// Target returns t; embedding SyncTarget gives every request variant this method.
func (t SyncTarget) Target() SyncTarget { return t }

// TargetOf builds the sync target of a stream.
func TargetOf(s *Stream) SyncTarget {
	return SyncTarget{
		StreamID:    s.ID,
		StreamType:  s.Type,
		OrganizerID: s.OrganizerID,
		CalendarID:  s.CalendarID,
		ExternalID:  s.ExternalID,
	}
}

// SyncRequest is a transient, caller-owned description of one external call.
// The concrete type selects the variant; Operation and Target select the route.
type SyncRequest interface {
	Operation() SyncOperation
	Target() SyncTarget
}

// SyncAttendee is the identity sent to external systems for an attendee or invitee.
type SyncAttendee struct {
	Email       string
	DisplayName string
	Comment     string
}

// CreateStreamSync creates the external calendar event or broadcast.
type CreateStreamSync struct {
	SyncTarget
	Instant     bool
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Timezone    string
	Visibility  Visibility
	Organizer   SyncAttendee
}

func (r CreateStreamSync) Operation() SyncOperation {
	if r.Instant {
		return SyncCreateInstant
	}
	return SyncCreate
}

// PatchStreamSync updates descriptive fields. Nil fields are unchanged.
type PatchStreamSync struct {
	SyncTarget
	Title       *string
	Description *string
	Location    *string
}

func (PatchStreamSync) Operation() SyncOperation { return SyncPatch }

// DeleteStreamSync removes the external resource.
type DeleteStreamSync struct {
	SyncTarget
}

func (DeleteStreamSync) Operation() SyncOperation { return SyncDelete }

// CancelStreamSync marks the external resource canceled.
type CancelStreamSync struct {
	SyncTarget
}

func (CancelStreamSync) Operation() SyncOperation { return SyncCancel }

// RescheduleStreamSync moves the external schedule.
type RescheduleStreamSync struct {
	SyncTarget
	StartsAt time.Time
	EndsAt   time.Time
	Timezone string
}

func (RescheduleStreamSync) Operation() SyncOperation { return SyncReschedule }

// VisibilitySync updates external visibility and invites attendees promoted by the change.
type VisibilitySync struct {
	SyncTarget
	Visibility Visibility
	Invitees   []SyncAttendee
}

func (VisibilitySync) Operation() SyncOperation { return SyncVisibilityUpdate }

// AttendeeSync adds or removes a single attendee. Op is one of
// SyncJoin, SyncProcessAttendeeRequest or SyncNotAttending.
type AttendeeSync struct {
	SyncTarget
	Op       SyncOperation
	Attendee SyncAttendee
}

func (r AttendeeSync) Operation() SyncOperation { return r.Op }

// SyncResult carries what the external system returned; only create populates it.
type SyncResult struct {
	ExternalID string
	// Dispatched is false when the operation does not apply to the stream type.
	Dispatched bool
}

// SyncDispatcher translates committed-in-progress mutations into external calls.
type SyncDispatcher interface {
	Dispatch(ctx context.Context, req SyncRequest) (SyncResult, error)
}

// CalendarEvent is the payload for creating a calendar event.
type CalendarEvent struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Timezone    string
	Visibility  Visibility
	Organizer   SyncAttendee
}

// CalendarEventPatch holds the descriptive fields of a calendar patch.
type CalendarEventPatch struct {
	Title       *string
	Description *string
	Location    *string
}

// CalendarClient is the calendar service contract.
type CalendarClient interface {
	CreateEvent(ctx context.Context, calendarID string, event CalendarEvent) (string, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch CalendarEventPatch) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	CancelEvent(ctx context.Context, calendarID, eventID string) error
	RescheduleEvent(ctx context.Context, calendarID, eventID string, startsAt, endsAt time.Time, timezone string) error
	UpdateVisibility(ctx context.Context, calendarID, eventID string, visibility Visibility) error
	AddAttendee(ctx context.Context, calendarID, eventID string, attendee SyncAttendee) error
	RemoveAttendee(ctx context.Context, calendarID, eventID, email string) error
}

// Broadcast is the payload for creating a live broadcast.
type Broadcast struct {
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Visibility  Visibility
}

// BroadcastPatch holds the descriptive fields of a broadcast patch.
type BroadcastPatch struct {
	Title       *string
	Description *string
}

// BroadcastClient is the live-broadcast platform contract. Every call needs a fresh access token.
type BroadcastClient interface {
	CreateBroadcast(ctx context.Context, broadcast Broadcast, accessToken string) (string, error)
	PatchBroadcast(ctx context.Context, broadcastID string, patch BroadcastPatch, accessToken string) error
	DeleteBroadcast(ctx context.Context, broadcastID, accessToken string) error
	RescheduleBroadcast(ctx context.Context, broadcastID string, startsAt, endsAt time.Time, accessToken string) error
	UpdateBroadcastVisibility(ctx context.Context, broadcastID string, visibility Visibility, accessToken string) error
}

// AccessTokenProvider returns a valid, possibly refreshed, OAuth2 access token for a member.
type AccessTokenProvider interface {
	AccessToken(ctx context.Context, memberID string) (string, error)
}

// CalendarResolver picks the calendar an organizer's events live in.
type CalendarResolver interface {
	CalendarFor(member *Member) string
}
