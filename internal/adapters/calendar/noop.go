package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"streamhub/internal/domain"
)

// Noop logs calendar calls instead of making them. Used when CALENDAR_PROVIDER=noop.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) log(ctx context.Context, op, calendarID, eventID string) {
	n.Logger.DebugContext(ctx, "calendar noop", slog.String("op", op), slog.String("calendar_id", calendarID), slog.String("event_id", eventID))
}

func (n Noop) CreateEvent(ctx context.Context, calendarID string, _ domain.CalendarEvent) (string, error) {
	id := uuid.NewString()
	n.log(ctx, "create", calendarID, id)
	return id, nil
}

func (n Noop) PatchEvent(ctx context.Context, calendarID, eventID string, _ domain.CalendarEventPatch) error {
	n.log(ctx, "patch", calendarID, eventID)
	return nil
}

func (n Noop) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	n.log(ctx, "delete", calendarID, eventID)
	return nil
}

func (n Noop) CancelEvent(ctx context.Context, calendarID, eventID string) error {
	n.log(ctx, "cancel", calendarID, eventID)
	return nil
}

func (n Noop) RescheduleEvent(ctx context.Context, calendarID, eventID string, _, _ time.Time, _ string) error {
	n.log(ctx, "reschedule", calendarID, eventID)
	return nil
}

func (n Noop) UpdateVisibility(ctx context.Context, calendarID, eventID string, _ domain.Visibility) error {
	n.log(ctx, "visibility", calendarID, eventID)
	return nil
}

func (n Noop) AddAttendee(ctx context.Context, calendarID, eventID string, _ domain.SyncAttendee) error {
	n.log(ctx, "add_attendee", calendarID, eventID)
	return nil
}

func (n Noop) RemoveAttendee(ctx context.Context, calendarID, eventID, _ string) error {
	n.log(ctx, "remove_attendee", calendarID, eventID)
	return nil
}
