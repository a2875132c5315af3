package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"streamhub/internal/domain"
)

const defaultContextTimeout = 10 * time.Second

type streamService struct {
	tx             domain.TxManager
	streams        domain.StreamRepository
	members        domain.MemberRepository
	calendars      domain.CalendarResolver
	policy         *StreamAccessPolicy
	sync           domain.SyncDispatcher
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewStreamService(
	tx domain.TxManager,
	streams domain.StreamRepository,
	members domain.MemberRepository,
	calendars domain.CalendarResolver,
	policy *StreamAccessPolicy,
	sync domain.SyncDispatcher,
	logger *slog.Logger,
	timeout time.Duration,
) domain.StreamService {
	if timeout <= 0 {
		timeout = defaultContextTimeout
	}
	return &streamService{
		tx:             tx,
		streams:        streams,
		members:        members,
		calendars:      calendars,
		policy:         policy,
		sync:           sync,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *streamService) Create(ctx context.Context, cmd domain.CreateStreamCommand) (*domain.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.policy.Now()
	if cmd.Instant {
		if cmd.Type != domain.StreamTypeEvent {
			return nil, fmt.Errorf("only events can start instantly: %w", domain.ErrInvalidInput)
		}
		cmd.StartsAt = now
	}
	if cmd.OrganizerID == "" {
		return nil, fmt.Errorf("organizer is required: %w", domain.ErrInvalidInput)
	}
	if !cmd.Type.Valid() {
		return nil, fmt.Errorf("stream type %q: %w", cmd.Type, domain.ErrInvalidInput)
	}
	if !cmd.Visibility.Valid() {
		return nil, fmt.Errorf("visibility %q: %w", cmd.Visibility, domain.ErrInvalidInput)
	}
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if err := validateSchedule(cmd.StartsAt, cmd.EndsAt, cmd.Timezone, now); err != nil {
		return nil, err
	}

	organizer, err := getMember(ctx, s.members, cmd.OrganizerID)
	if err != nil {
		return nil, err
	}

	stream := domain.NewStream(cmd.OrganizerID, cmd.Type, cmd.Visibility, title, cmd.StartsAt, cmd.EndsAt, cmd.Timezone, now)
	stream.Description = cmd.Description
	stream.Location = cmd.Location
	if stream.Type == domain.StreamTypeEvent {
		stream.CalendarID = s.calendars.CalendarFor(organizer)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.streams.Create(ctx, stream); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		res, err := s.sync.Dispatch(ctx, domain.CreateStreamSync{
			SyncTarget:  domain.TargetOf(stream),
			Instant:     cmd.Instant,
			Title:       stream.Title,
			Description: stream.Description,
			Location:    stream.Location,
			StartsAt:    stream.StartsAt,
			EndsAt:      stream.EndsAt,
			Timezone:    stream.Timezone,
			Visibility:  stream.Visibility,
			Organizer:   organizer.SyncAttendee(""),
		})
		if err != nil {
			return err
		}
		if res.ExternalID == "" {
			return nil
		}
		if err := s.streams.SetExternalLink(ctx, stream.ID, res.ExternalID, stream.CalendarID); err != nil {
			return fmt.Errorf("link external resource: %w", err)
		}
		stream.ExternalID = res.ExternalID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "stream.created", stream, cmd.OrganizerID)
	return stream, nil
}

func (s *streamService) Get(ctx context.Context, streamID string) (*domain.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stream, err := getStream(ctx, s.streams, streamID)
	if err != nil {
		return nil, err
	}
	if err := checkExists(stream); err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *streamService) Update(ctx context.Context, streamID, actorID string, patch domain.StreamPatch) (*domain.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if patch.Empty() {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrInvalidInput)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("title cannot be empty: %w", domain.ErrInvalidInput)
	}

	var stream *domain.Stream
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanActOnStream(stream, actorID); err != nil {
			return err
		}
		if err := s.streams.UpdateDetails(ctx, stream.ID, patch); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		applyPatch(stream, patch, s.policy.Now())
		_, err = s.sync.Dispatch(ctx, domain.PatchStreamSync{
			SyncTarget:  domain.TargetOf(stream),
			Title:       patch.Title,
			Description: patch.Description,
			Location:    patch.Location,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "stream.updated", stream, actorID)
	return stream, nil
}

func (s *streamService) Cancel(ctx context.Context, streamID, actorID string) (*domain.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stream, err := s.setStatus(ctx, streamID, actorID, domain.StreamStatusCanceled, func(stream *domain.Stream) domain.SyncRequest {
		return domain.CancelStreamSync{SyncTarget: domain.TargetOf(stream)}
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "stream.canceled", stream, actorID)
	return stream, nil
}

// Delete is a soft delete: the stream is marked DELETED and reads as not found afterwards.
func (s *streamService) Delete(ctx context.Context, streamID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stream, err := s.setStatus(ctx, streamID, actorID, domain.StreamStatusDeleted, func(stream *domain.Stream) domain.SyncRequest {
		return domain.DeleteStreamSync{SyncTarget: domain.TargetOf(stream)}
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "stream.deleted", stream, actorID)
	return nil
}

func (s *streamService) Reschedule(ctx context.Context, streamID, actorID string, startsAt, endsAt time.Time, timezone string) (*domain.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := validateSchedule(startsAt, endsAt, timezone, s.policy.Now()); err != nil {
		return nil, err
	}

	var stream *domain.Stream
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanActOnUpcomingStream(stream, actorID); err != nil {
			return err
		}
		if err := s.streams.UpdateSchedule(ctx, stream.ID, startsAt, endsAt, timezone); err != nil {
			return fmt.Errorf("reschedule stream: %w", err)
		}
		stream.StartsAt, stream.EndsAt, stream.Timezone = startsAt, endsAt, timezone
		stream.UpdatedAt = s.policy.Now()
		_, err = s.sync.Dispatch(ctx, domain.RescheduleStreamSync{
			SyncTarget: domain.TargetOf(stream),
			StartsAt:   startsAt,
			EndsAt:     endsAt,
			Timezone:   timezone,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "stream.rescheduled", stream, actorID)
	return stream, nil
}

func (s *streamService) setStatus(ctx context.Context, streamID, actorID string, status domain.StreamStatus, req func(*domain.Stream) domain.SyncRequest) (*domain.Stream, error) {
	var stream *domain.Stream
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanActOnUpcomingStream(stream, actorID); err != nil {
			return err
		}
		if err := s.streams.SetStatus(ctx, stream.ID, status); err != nil {
			return fmt.Errorf("set stream status: %w", err)
		}
		stream.Status = status
		stream.UpdatedAt = s.policy.Now()
		_, err = s.sync.Dispatch(ctx, req(stream))
		return err
	})
	return stream, err
}

func (s *streamService) audit(ctx context.Context, action string, stream *domain.Stream, actorID string) {
	s.logger.InfoContext(ctx, "stream transition",
		"action", action,
		"stream_id", stream.ID,
		"stream_type", string(stream.Type),
		"actor_id", actorID,
		"status", string(stream.Status),
	)
}

func applyPatch(stream *domain.Stream, patch domain.StreamPatch, now time.Time) {
	if patch.Title != nil {
		stream.Title = *patch.Title
	}
	if patch.Description != nil {
		stream.Description = *patch.Description
	}
	if patch.Location != nil {
		stream.Location = *patch.Location
	}
	stream.UpdatedAt = now
}

// validateSchedule requires a known IANA timezone and an end after both the start and now.
func validateSchedule(startsAt, endsAt time.Time, timezone string, now time.Time) error {
	if startsAt.IsZero() || endsAt.IsZero() {
		return fmt.Errorf("start and end are required: %w", domain.ErrInvalidInput)
	}
	if !endsAt.After(startsAt) {
		return fmt.Errorf("end must be after start: %w", domain.ErrInvalidInput)
	}
	if !endsAt.After(now) {
		return fmt.Errorf("end must be in the future: %w", domain.ErrInvalidInput)
	}
	if timezone == "" {
		return fmt.Errorf("timezone is required: %w", domain.ErrInvalidInput)
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", timezone, domain.ErrInvalidInput)
	}
	return nil
}

// CountryCalendars resolves an organizer's calendar from their country, falling back to a default.
type CountryCalendars struct {
	DefaultID string
	ByCountry map[string]string
}

func (c CountryCalendars) CalendarFor(member *domain.Member) string {
	if member != nil {
		if id, ok := c.ByCountry[strings.ToUpper(member.Country)]; ok && id != "" {
			return id
		}
	}
	return c.DefaultID
}
