// Package calendar talks to Google Calendar on behalf of EVENT streams.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"streamhub/internal/domain"
)

// sendUpdates makes Google mail invitations and changes to every guest.
const sendUpdates = "all"

// Client implements domain.CalendarClient with the Calendar v3 API.
type Client struct {
	events *gcal.EventsService
}

// NewClient builds a client. Pass option.WithCredentialsFile in production,
// option.WithHTTPClient and option.WithEndpoint in tests.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{events: svc.Events}, nil
}

func eventTime(t time.Time, tz string) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: tz}
}

// visibility maps stream visibility onto calendar event visibility.
func visibility(v domain.Visibility) string {
	switch v {
	case domain.VisibilityPublic:
		return "public"
	case domain.VisibilityPrivate:
		return "private"
	default:
		return "default"
	}
}

func (c *Client) CreateEvent(ctx context.Context, calendarID string, event domain.CalendarEvent) (string, error) {
	ev := &gcal.Event{
		Summary:                 event.Title,
		Description:             event.Description,
		Location:                event.Location,
		Start:                   eventTime(event.StartsAt, event.Timezone),
		End:                     eventTime(event.EndsAt, event.Timezone),
		Visibility:              visibility(event.Visibility),
		GuestsCanSeeOtherGuests: googleapi.Bool(false),
	}
	if event.Organizer.Email != "" {
		ev.Attendees = []*gcal.EventAttendee{attendee(event.Organizer, true)}
	}
	created, err := c.events.Insert(calendarID, ev).SendUpdates(sendUpdates).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, patch domain.CalendarEventPatch) error {
	ev := &gcal.Event{}
	if patch.Title != nil {
		ev.Summary = *patch.Title
		ev.ForceSendFields = append(ev.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
		ev.ForceSendFields = append(ev.ForceSendFields, "Description")
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
		ev.ForceSendFields = append(ev.ForceSendFields, "Location")
	}
	return c.patch(ctx, calendarID, eventID, ev)
}

func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.events.Delete(calendarID, eventID).SendUpdates(sendUpdates).Context(ctx).Do()
	if isGone(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (c *Client) CancelEvent(ctx context.Context, calendarID, eventID string) error {
	return c.patch(ctx, calendarID, eventID, &gcal.Event{Status: "cancelled"})
}

func (c *Client) RescheduleEvent(ctx context.Context, calendarID, eventID string, startsAt, endsAt time.Time, timezone string) error {
	return c.patch(ctx, calendarID, eventID, &gcal.Event{
		Start: eventTime(startsAt, timezone),
		End:   eventTime(endsAt, timezone),
	})
}

func (c *Client) UpdateVisibility(ctx context.Context, calendarID, eventID string, v domain.Visibility) error {
	return c.patch(ctx, calendarID, eventID, &gcal.Event{Visibility: visibility(v)})
}

// AddAttendee adds the guest unless they are already on the event.
func (c *Client) AddAttendee(ctx context.Context, calendarID, eventID string, a domain.SyncAttendee) error {
	ev, err := c.events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	for _, existing := range ev.Attendees {
		if strings.EqualFold(existing.Email, a.Email) {
			return nil
		}
	}
	guests := append(ev.Attendees, attendee(a, false))
	return c.patch(ctx, calendarID, eventID, &gcal.Event{Attendees: guests})
}

func (c *Client) RemoveAttendee(ctx context.Context, calendarID, eventID, email string) error {
	ev, err := c.events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	guests := make([]*gcal.EventAttendee, 0, len(ev.Attendees))
	for _, existing := range ev.Attendees {
		if !strings.EqualFold(existing.Email, email) {
			guests = append(guests, existing)
		}
	}
	if len(guests) == len(ev.Attendees) {
		return nil
	}
	return c.patch(ctx, calendarID, eventID, &gcal.Event{Attendees: guests, ForceSendFields: []string{"Attendees"}})
}

func (c *Client) patch(ctx context.Context, calendarID, eventID string, ev *gcal.Event) error {
	if _, err := c.events.Patch(calendarID, eventID, ev).SendUpdates(sendUpdates).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch event: %w", err)
	}
	return nil
}

func attendee(a domain.SyncAttendee, organizer bool) *gcal.EventAttendee {
	return &gcal.EventAttendee{
		Email:          a.Email,
		DisplayName:    a.DisplayName,
		Comment:        a.Comment,
		Organizer:      organizer,
		ResponseStatus: "needsAction",
	}
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}
