package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"streamhub/internal/domain"
)

const tracerName = "streamhub/internal/services"

type syncCoordinator struct {
	calendar  domain.CalendarClient
	broadcast domain.BroadcastClient
	tokens    domain.AccessTokenProvider
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSyncCoordinator returns a SyncDispatcher that routes each request to the calendar or the
// broadcast platform by stream type. It never retries; failures come back as *domain.ExternalSyncError.
func NewSyncCoordinator(calendar domain.CalendarClient, broadcast domain.BroadcastClient, tokens domain.AccessTokenProvider, logger *slog.Logger) domain.SyncDispatcher {
	return &syncCoordinator{
		calendar:  calendar,
		broadcast: broadcast,
		tokens:    tokens,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

func (c *syncCoordinator) Dispatch(ctx context.Context, req domain.SyncRequest) (domain.SyncResult, error) {
	target := req.Target()
	op := req.Operation()

	ctx, span := c.tracer.Start(ctx, "sync.dispatch", trace.WithAttributes(
		attribute.String("stream.id", target.StreamID),
		attribute.String("stream.type", string(target.StreamType)),
		attribute.String("sync.operation", string(op)),
	))
	defer span.End()

	var (
		res domain.SyncResult
		err error
	)
	switch target.StreamType {
	case domain.StreamTypeEvent:
		res, err = c.dispatchEvent(ctx, req)
	case domain.StreamTypeLiveBroadcast:
		res, err = c.dispatchBroadcast(ctx, req)
	default:
		err = fmt.Errorf("unknown stream type %q: %w", target.StreamType, domain.ErrInvalidInput)
	}
	span.SetAttributes(attribute.Bool("sync.dispatched", res.Dispatched))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SyncResult{}, &domain.ExternalSyncError{Operation: op, StreamType: target.StreamType, Err: err}
	}
	if !res.Dispatched {
		c.logger.DebugContext(ctx, "sync skipped", "stream_id", target.StreamID, "stream_type", target.StreamType, "operation", op)
		return res, nil
	}
	c.logger.InfoContext(ctx, "sync dispatched", "stream_id", target.StreamID, "stream_type", target.StreamType, "operation", op)
	return res, nil
}

func (c *syncCoordinator) dispatchEvent(ctx context.Context, req domain.SyncRequest) (domain.SyncResult, error) {
	t := req.Target()
	if create, ok := req.(domain.CreateStreamSync); ok {
		id, err := c.calendar.CreateEvent(ctx, t.CalendarID, domain.CalendarEvent{
			Title:       create.Title,
			Description: create.Description,
			Location:    create.Location,
			StartsAt:    create.StartsAt,
			EndsAt:      create.EndsAt,
			Timezone:    create.Timezone,
			Visibility:  create.Visibility,
			Organizer:   create.Organizer,
		})
		if err != nil {
			return domain.SyncResult{}, fmt.Errorf("create calendar event: %w", err)
		}
		return domain.SyncResult{ExternalID: id, Dispatched: true}, nil
	}

	// Every other calendar call addresses an existing event.
	if t.ExternalID == "" || t.CalendarID == "" {
		return domain.SyncResult{}, nil
	}

	var err error
	switch r := req.(type) {
	case domain.PatchStreamSync:
		err = c.calendar.PatchEvent(ctx, t.CalendarID, t.ExternalID, domain.CalendarEventPatch{
			Title:       r.Title,
			Description: r.Description,
			Location:    r.Location,
		})
	case domain.DeleteStreamSync:
		err = c.calendar.DeleteEvent(ctx, t.CalendarID, t.ExternalID)
	case domain.CancelStreamSync:
		err = c.calendar.CancelEvent(ctx, t.CalendarID, t.ExternalID)
	case domain.RescheduleStreamSync:
		err = c.calendar.RescheduleEvent(ctx, t.CalendarID, t.ExternalID, r.StartsAt, r.EndsAt, r.Timezone)
	case domain.VisibilitySync:
		if err = c.calendar.UpdateVisibility(ctx, t.CalendarID, t.ExternalID, r.Visibility); err != nil {
			break
		}
		for _, invitee := range r.Invitees {
			if err = c.calendar.AddAttendee(ctx, t.CalendarID, t.ExternalID, invitee); err != nil {
				err = fmt.Errorf("invite %s: %w", invitee.Email, err)
				break
			}
		}
	case domain.AttendeeSync:
		switch r.Op {
		case domain.SyncJoin, domain.SyncProcessAttendeeRequest:
			err = c.calendar.AddAttendee(ctx, t.CalendarID, t.ExternalID, r.Attendee)
		case domain.SyncNotAttending:
			err = c.calendar.RemoveAttendee(ctx, t.CalendarID, t.ExternalID, r.Attendee.Email)
		default:
			return domain.SyncResult{}, nil
		}
	default:
		return domain.SyncResult{}, nil
	}
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("calendar %s: %w", req.Operation(), err)
	}
	return domain.SyncResult{ExternalID: t.ExternalID, Dispatched: true}, nil
}

func (c *syncCoordinator) dispatchBroadcast(ctx context.Context, req domain.SyncRequest) (domain.SyncResult, error) {
	t := req.Target()
	if !broadcastApplies(req) {
		return domain.SyncResult{}, nil
	}
	if _, creating := req.(domain.CreateStreamSync); !creating && t.ExternalID == "" {
		return domain.SyncResult{}, nil
	}

	token, err := c.tokens.AccessToken(ctx, t.OrganizerID)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("obtain access token: %w", err)
	}

	switch r := req.(type) {
	case domain.CreateStreamSync:
		id, err := c.broadcast.CreateBroadcast(ctx, domain.Broadcast{
			Title:       r.Title,
			Description: r.Description,
			StartsAt:    r.StartsAt,
			EndsAt:      r.EndsAt,
			Visibility:  r.Visibility,
		}, token)
		if err != nil {
			return domain.SyncResult{}, fmt.Errorf("create broadcast: %w", err)
		}
		return domain.SyncResult{ExternalID: id, Dispatched: true}, nil
	case domain.PatchStreamSync:
		err = c.broadcast.PatchBroadcast(ctx, t.ExternalID, domain.BroadcastPatch{Title: r.Title, Description: r.Description}, token)
	case domain.DeleteStreamSync:
		err = c.broadcast.DeleteBroadcast(ctx, t.ExternalID, token)
	case domain.RescheduleStreamSync:
		err = c.broadcast.RescheduleBroadcast(ctx, t.ExternalID, r.StartsAt, r.EndsAt, token)
	case domain.VisibilitySync:
		err = c.broadcast.UpdateBroadcastVisibility(ctx, t.ExternalID, r.Visibility, token)
	}
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("broadcast %s: %w", req.Operation(), err)
	}
	return domain.SyncResult{ExternalID: t.ExternalID, Dispatched: true}, nil
}

// broadcastApplies reports whether the broadcast platform has a call for req.
// Cancel, instant creation and attendee operations have none.
func broadcastApplies(req domain.SyncRequest) bool {
	switch req.Operation() {
	case domain.SyncCreate, domain.SyncPatch, domain.SyncDelete, domain.SyncReschedule, domain.SyncVisibilityUpdate:
		return true
	}
	return false
}
