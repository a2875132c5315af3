package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"streamhub/internal/domain"
)

type visibilityService struct {
	tx        domain.TxManager
	streams   domain.StreamRepository
	attendees domain.StreamAttendeeRepository
	members   domain.MemberRepository
	policy    *StreamAccessPolicy
	sync      domain.SyncDispatcher
	notifier  domain.Notifier
	logger    *slog.Logger

	contextTimeout time.Duration
}

// NewVisibilityService creates the VisibilityService.
func NewVisibilityService(
	tx domain.TxManager,
	streams domain.StreamRepository,
	attendees domain.StreamAttendeeRepository,
	members domain.MemberRepository,
	policy *StreamAccessPolicy,
	sync domain.SyncDispatcher,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.VisibilityService {
	if timeout <= 0 {
		timeout = defaultContextTimeout
	}
	return &visibilityService{
		tx:        tx,
		streams:   streams,
		attendees: attendees,
		members:   members,
		policy:    policy,
		sync:      sync,
		notifier:  notifier,
		logger:    logger,

		contextTimeout: timeout,
	}
}

// ChangeVisibility sets the stream visibility. Opening a PRIVATE or PROTECTED stream to
// PUBLIC promotes every pending request to APPROVED+attending and invites those members.
func (s *visibilityService) ChangeVisibility(ctx context.Context, streamID, actorID string, visibility domain.Visibility) (*domain.VisibilityChange, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !visibility.Valid() {
		return nil, fmt.Errorf("visibility %q: %w", visibility, domain.ErrInvalidInput)
	}
	var change *domain.VisibilityChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		stream, err := lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanActOnUpcomingStream(stream, actorID); err != nil {
			return err
		}
		previous := stream.Visibility
		change = &domain.VisibilityChange{Stream: stream, PreviousVisibility: previous, Promoted: []*domain.StreamAttendee{}}
		if previous == visibility {
			return nil
		}

		if err := s.streams.SetVisibility(ctx, stream.ID, visibility); err != nil {
			return fmt.Errorf("set visibility: %w", err)
		}
		stream.Visibility = visibility
		stream.UpdatedAt = s.policy.Now()

		var invitees []domain.SyncAttendee
		if previous.RequiresApproval() && visibility == domain.VisibilityPublic {
			promoted, err := s.attendees.ApprovePending(ctx, stream.ID)
			if err != nil {
				return fmt.Errorf("approve pending: %w", err)
			}
			if len(promoted) > 0 {
				total, err := s.streams.AdjustAttendees(ctx, stream.ID, len(promoted))
				if err != nil {
					return fmt.Errorf("increment attendees: %w", err)
				}
				stream.TotalAttendees = total
				invitees, err = s.invitees(ctx, promoted)
				if err != nil {
					return err
				}
				change.Promoted = promoted
			}
		}

		_, err = s.sync.Dispatch(ctx, domain.VisibilitySync{
			SyncTarget: domain.TargetOf(stream),
			Visibility: visibility,
			Invitees:   invitees,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if change.PreviousVisibility != visibility {
		s.logger.InfoContext(ctx, "stream transition",
			"action", "stream.visibility_changed",
			"stream_id", change.Stream.ID,
			"actor_id", actorID,
			"from", string(change.PreviousVisibility),
			"to", string(visibility),
			"promoted", len(change.Promoted),
		)
	}
	now := s.policy.Now()
	for _, a := range change.Promoted {
		s.notifier.Notify(ctx, domain.NewNotification(domain.NotificationRequestApproved, change.Stream, a, actorID, "", now))
	}
	return change, nil
}

func (s *visibilityService) invitees(ctx context.Context, promoted []*domain.StreamAttendee) ([]domain.SyncAttendee, error) {
	ids := make([]string, 0, len(promoted))
	for _, a := range promoted {
		ids = append(ids, a.MemberID)
	}
	members, err := s.members.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}
	out := make([]domain.SyncAttendee, 0, len(promoted))
	for _, a := range promoted {
		m, ok := members[a.MemberID]
		if !ok {
			return nil, fmt.Errorf("member %s: %w", a.MemberID, domain.ErrMemberNotFound)
		}
		out = append(out, m.SyncAttendee(a.AttendeeComment))
	}
	return out, nil
}
