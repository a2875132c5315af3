package domain

import (
	"context"
	"time"
)

// NotificationKind names what happened to a stream attendee.
type NotificationKind string

const (
	NotificationJoinRequested      NotificationKind = "stream.join_requested"
	NotificationJoined             NotificationKind = "stream.joined"
	NotificationRequestApproved    NotificationKind = "stream.request_approved"
	NotificationRequestDisapproved NotificationKind = "stream.request_disapproved"
	NotificationNotAttending       NotificationKind = "stream.not_attending"
)

// Notification is published after a transition commits.
type Notification struct {
	Kind             NotificationKind `json:"kind"`
	StreamID         string           `json:"stream_id"`
	StreamTitle      string           `json:"stream_title"`
	AttendeeID       string           `json:"attendee_id"`
	AttendeeMemberID string           `json:"attendee_member_id"`
	OrganizerID      string           `json:"organizer_id"`
	ActorMemberID    string           `json:"actor_member_id"`
	Comment          string           `json:"comment,omitempty"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// NewNotification builds a notification for an attendee transition.
func NewNotification(kind NotificationKind, stream *Stream, attendee *StreamAttendee, actorID, comment string, now time.Time) Notification {
	return Notification{
		Kind:             kind,
		StreamID:         stream.ID,
		StreamTitle:      stream.Title,
		AttendeeID:       attendee.ID,
		AttendeeMemberID: attendee.MemberID,
		OrganizerID:      stream.OrganizerID,
		ActorMemberID:    actorID,
		Comment:          comment,
		OccurredAt:       now,
	}
}

// Notifier is fire-and-forget: failures are logged by the implementation, never returned.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// EventPublisher publishes a payload to a named channel on the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, eventType string, payload any) error
}
