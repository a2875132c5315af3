package domain

import (
	"context"
	"time"
)

// StreamType distinguishes calendar events from live broadcasts.
type StreamType string

const (
	StreamTypeEvent         StreamType = "EVENT"
	StreamTypeLiveBroadcast StreamType = "LIVE_BROADCAST"
)

// Valid reports whether t is a known stream type.
func (t StreamType) Valid() bool {
	return t == StreamTypeEvent || t == StreamTypeLiveBroadcast
}

// StreamStatus is the lifecycle status of a stream.
type StreamStatus string

const (
	StreamStatusActive   StreamStatus = "ACTIVE"
	StreamStatusCanceled StreamStatus = "CANCELED"
	StreamStatusDeleted  StreamStatus = "DELETED"
)

// Visibility controls who may join a stream and whether approval is required.
type Visibility string

const (
	// VisibilityPublic streams are joined without approval.
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityPrivate streams are invite-only and require approval.
	VisibilityPrivate Visibility = "PRIVATE"
	// VisibilityProtected streams are discoverable but require approval.
	VisibilityProtected Visibility = "PROTECTED"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityProtected:
		return true
	}
	return false
}

// RequiresApproval reports whether joining needs an organizer decision.
func (v Visibility) RequiresApproval() bool {
	return v == VisibilityPrivate || v == VisibilityProtected
}

// Stream is a shared live session: a scheduled calendar event or a live broadcast.
// swagger:model Stream
type Stream struct {
	ID             string       `json:"id"`
	OrganizerID    string       `json:"organizer_id"`
	Type           StreamType   `json:"stream_type"`
	Status         StreamStatus `json:"status"`
	Visibility     Visibility   `json:"visibility"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	StartsAt       time.Time    `json:"starts_at"`
	EndsAt         time.Time    `json:"ends_at"`
	Timezone       string       `json:"timezone"`
	TotalAttendees int64        `json:"total_attendees"`
	LikeCount      int64        `json:"like_count"`
	// ExternalID is the calendar event id or broadcast id, set after the first successful sync.
	ExternalID string    `json:"external_id,omitempty"`
	CalendarID string    `json:"calendar_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewStream returns an ACTIVE stream with zeroed counters. ID is set by the repository on create.
func NewStream(organizerID string, streamType StreamType, visibility Visibility, title string, startsAt, endsAt time.Time, timezone string, now time.Time) *Stream {
	return &Stream{
		OrganizerID: organizerID,
		Type:        streamType,
		Status:      StreamStatusActive,
		Visibility:  visibility,
		Title:       title,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Timezone:    timezone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasEnded reports whether the schedule end is at or before now.
func (s *Stream) HasEnded(now time.Time) bool {
	return !s.EndsAt.After(now)
}

// IsOngoing reports whether now falls inside the scheduled window.
func (s *Stream) IsOngoing(now time.Time) bool {
	return !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}

// StreamPatch carries the optional descriptive fields of an update. Nil fields are unchanged.
type StreamPatch struct {
	Title       *string
	Description *string
	Location    *string
}

// Empty reports whether the patch changes nothing.
func (p StreamPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil
}

// StreamRepository defines storage operations for streams.
// Mutations run on the transaction carried by ctx when there is one.
type StreamRepository interface {
	Create(ctx context.Context, stream *Stream) error
	GetByID(ctx context.Context, id string) (*Stream, error)
	// GetByIDForUpdate reads the stream and locks its row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Stream, error)
	UpdateDetails(ctx context.Context, id string, patch StreamPatch) error
	UpdateSchedule(ctx context.Context, id string, startsAt, endsAt time.Time, timezone string) error
	SetStatus(ctx context.Context, id string, status StreamStatus) error
	SetVisibility(ctx context.Context, id string, visibility Visibility) error
	SetExternalLink(ctx context.Context, id, externalID, calendarID string) error
	// AdjustAttendees atomically adds delta to total_attendees and returns the new value.
	// It fails with ErrCounterUnderflow instead of going negative.
	AdjustAttendees(ctx context.Context, id string, delta int) (int64, error)
}

// CreateStreamCommand is the input to StreamService.Create.
type CreateStreamCommand struct {
	OrganizerID string
	Type        StreamType
	Visibility  Visibility
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Timezone    string
	// Instant creates an EVENT starting now; StartsAt is ignored.
	Instant bool
}

// StreamService owns the stream lifecycle that feeds the external sync table.
type StreamService interface {
	Create(ctx context.Context, cmd CreateStreamCommand) (*Stream, error)
	Get(ctx context.Context, streamID string) (*Stream, error)
	Update(ctx context.Context, streamID, actorID string, patch StreamPatch) (*Stream, error)
	Cancel(ctx context.Context, streamID, actorID string) (*Stream, error)
	Delete(ctx context.Context, streamID, actorID string) error
	Reschedule(ctx context.Context, streamID, actorID string, startsAt, endsAt time.Time, timezone string) (*Stream, error)
}

// VisibilityChange reports the outcome of a visibility transition.
type VisibilityChange struct {
	Stream             *Stream           `json:"stream"`
	PreviousVisibility Visibility        `json:"previous_visibility"`
	Promoted           []*StreamAttendee `json:"promoted"`
}

// VisibilityService applies visibility changes and cascades pending promotions.
type VisibilityService interface {
	ChangeVisibility(ctx context.Context, streamID, actorID string, visibility Visibility) (*VisibilityChange, error)
}
