package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streamhub/internal/domain"
)

type attendanceService struct {
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

// NewAttendanceService creates the AttendanceService that owns the attendee state machine.
func NewAttendanceService(
	tx domain.TxManager,
	streams domain.StreamRepository,
	attendees domain.StreamAttendeeRepository,
	members domain.MemberRepository,
	policy *StreamAccessPolicy,
	sync domain.SyncDispatcher,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.AttendanceService {
	if timeout <= 0 {
		timeout = defaultContextTimeout
	}
	return &attendanceService{
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

func (s *attendanceService) Join(ctx context.Context, streamID, actorID, comment string) (*domain.AttendanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		stream *domain.Stream
		result *domain.AttendanceResult
		kind   domain.NotificationKind
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		decision, err := s.policy.CanRequestToJoin(stream, actorID)
		if err != nil {
			return err
		}
		existing, err := s.findAttendee(ctx, stream.ID, actorID)
		if err != nil {
			return err
		}
		if err := s.policy.CheckNotAlreadyAttendee(existing); err != nil {
			return err
		}

		// An approved member who stopped attending resumes without a new approval,
		// whatever the visibility.
		if existing != nil && existing.RequestToJoinStatus == domain.RequestApproved {
			kind = domain.NotificationJoined
			result, err = s.admit(ctx, stream, existing, actorID, comment, domain.SyncJoin)
			return err
		}
		if _, err := s.policy.CanJoinDirectly(stream, actorID); err != nil {
			return err
		}
		if decision == DecisionRequiresApproval {
			kind = domain.NotificationJoinRequested
			result, err = s.request(ctx, stream, existing, actorID, comment)
			return err
		}
		kind = domain.NotificationJoined
		result, err = s.admit(ctx, stream, existing, actorID, comment, domain.SyncJoin)
		return err
	})
	if err != nil {
		return nil, s.raceLoser(ctx, streamID, actorID, err)
	}
	s.committed(ctx, kind, stream, result.Attendee, actorID, comment)
	return result, nil
}

func (s *attendanceService) RequestToJoin(ctx context.Context, streamID, actorID, comment string) (*domain.AttendanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		stream *domain.Stream
		result *domain.AttendanceResult
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		decision, err := s.policy.CanRequestToJoin(stream, actorID)
		if err != nil {
			return err
		}
		if decision != DecisionRequiresApproval {
			return fmt.Errorf("stream is public, join it directly: %w", domain.ErrFailedOperation)
		}
		existing, err := s.findAttendee(ctx, stream.ID, actorID)
		if err != nil {
			return err
		}
		if err := s.policy.CheckNotAlreadyAttendee(existing); err != nil {
			return err
		}
		result, err = s.request(ctx, stream, existing, actorID, comment)
		return err
	})
	if err != nil {
		return nil, s.raceLoser(ctx, streamID, actorID, err)
	}
	s.committed(ctx, domain.NotificationJoinRequested, stream, result.Attendee, actorID, comment)
	return result, nil
}

func (s *attendanceService) ProcessRequest(ctx context.Context, streamID, organizerID, attendeeID string, decision domain.OrganizerDecision, comment string) (*domain.AttendanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !decision.Valid() {
		return nil, fmt.Errorf("decision %q: %w", decision, domain.ErrInvalidInput)
	}
	var (
		stream *domain.Stream
		result *domain.AttendanceResult
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanActOnStream(stream, organizerID); err != nil {
			return err
		}
		attendee, err := s.attendees.GetByID(ctx, attendeeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrAttendeeNotFound
			}
			return fmt.Errorf("get attendee: %w", err)
		}
		if attendee.StreamID != stream.ID {
			return domain.ErrAttendeeNotFound
		}
		if err := s.policy.CanProcessRequest(attendee); err != nil {
			return err
		}
		attendee.OrganizerComment = comment

		if decision == domain.DecisionApprove {
			result, err = s.admit(ctx, stream, attendee, attendee.MemberID, "", domain.SyncProcessAttendeeRequest)
			return err
		}
		attendee.RequestToJoinStatus = domain.RequestDisapproved
		attendee.IsAttending = false
		attendee.UpdatedAt = s.policy.Now()
		if err := s.attendees.Update(ctx, attendee); err != nil {
			return fmt.Errorf("update attendee: %w", err)
		}
		result = summarize(stream, attendee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	kind := domain.NotificationRequestApproved
	if decision == domain.DecisionDisapprove {
		kind = domain.NotificationRequestDisapproved
	}
	s.committed(ctx, kind, stream, result.Attendee, organizerID, comment)
	return result, nil
}

func (s *attendanceService) MarkNotAttending(ctx context.Context, streamID, actorID string) (*domain.AttendanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		stream *domain.Stream
		result *domain.AttendanceResult
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stream, err = lockStream(ctx, s.streams, streamID)
		if err != nil {
			return err
		}
		if err := s.policy.CanLeaveStream(stream); err != nil {
			return err
		}
		attendee, err := s.findAttendee(ctx, stream.ID, actorID)
		if err != nil {
			return err
		}
		if attendee == nil {
			return domain.ErrAttendeeNotFound
		}
		if !attendee.IsAttending {
			return fmt.Errorf("not attending: %w", domain.ErrFailedOperation)
		}

		wasCounted := attendee.Counted()
		// RequestToJoinStatus stays as is: an approved member may resume later without re-approval.
		attendee.IsAttending = false
		attendee.UpdatedAt = s.policy.Now()
		if err := s.attendees.Update(ctx, attendee); err != nil {
			return fmt.Errorf("update attendee: %w", err)
		}
		if wasCounted {
			total, err := s.streams.AdjustAttendees(ctx, stream.ID, -1)
			if err != nil {
				return fmt.Errorf("decrement attendees: %w", err)
			}
			stream.TotalAttendees = total
		}

		member, err := s.member(ctx, actorID)
		if err != nil {
			return err
		}
		if _, err := s.sync.Dispatch(ctx, domain.AttendeeSync{
			SyncTarget: domain.TargetOf(stream),
			Op:         domain.SyncNotAttending,
			Attendee:   member.SyncAttendee(""),
		}); err != nil {
			return err
		}
		result = summarize(stream, attendee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, domain.NotificationNotAttending, stream, result.Attendee, actorID, "")
	return result, nil
}

func (s *attendanceService) ListAttendees(ctx context.Context, streamID, actorID string, status domain.RequestToJoinStatus, page domain.PaginationParams) (*domain.AttendeePage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}
	stream, err := getStream(ctx, s.streams, streamID)
	if err != nil {
		return nil, err
	}
	if err := checkExists(stream); err != nil {
		return nil, err
	}
	if stream.OrganizerID != actorID {
		return nil, domain.ErrOwnershipViolation
	}
	page = page.Normalized()
	attendees, total, err := s.attendees.ListByStream(ctx, stream.ID, status, page)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	if attendees == nil {
		attendees = []*domain.StreamAttendee{}
	}
	return &domain.AttendeePage{Attendees: attendees, Total: total}, nil
}

func (s *attendanceService) VerifyCounter(ctx context.Context, streamID string) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stream, err := getStream(ctx, s.streams, streamID)
	if err != nil {
		return 0, 0, err
	}
	counted, err := s.attendees.CountAttending(ctx, stream.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("count attending: %w", err)
	}
	if counted != stream.TotalAttendees {
		s.logger.WarnContext(ctx, "attendee counter drift", "stream_id", stream.ID, "stored", stream.TotalAttendees, "counted", counted)
	}
	return stream.TotalAttendees, counted, nil
}

// admit moves the attendee (creating it when nil) to APPROVED+attending, counts it
// and adds it to the external stream.
func (s *attendanceService) admit(ctx context.Context, stream *domain.Stream, attendee *domain.StreamAttendee, memberID, comment string, op domain.SyncOperation) (*domain.AttendanceResult, error) {
	now := s.policy.Now()
	if attendee == nil {
		attendee = domain.NewStreamAttendee(stream.ID, memberID, domain.RequestApproved, true, comment, now)
		if err := s.createAttendee(ctx, attendee); err != nil {
			return nil, err
		}
	} else {
		attendee.RequestToJoinStatus = domain.RequestApproved
		attendee.IsAttending = true
		if comment != "" {
			attendee.AttendeeComment = comment
		}
		attendee.UpdatedAt = now
		if err := s.attendees.Update(ctx, attendee); err != nil {
			return nil, fmt.Errorf("update attendee: %w", err)
		}
	}

	total, err := s.streams.AdjustAttendees(ctx, stream.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("increment attendees: %w", err)
	}
	stream.TotalAttendees = total

	member, err := s.member(ctx, attendee.MemberID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sync.Dispatch(ctx, domain.AttendeeSync{
		SyncTarget: domain.TargetOf(stream),
		Op:         op,
		Attendee:   member.SyncAttendee(attendee.AttendeeComment),
	}); err != nil {
		return nil, err
	}
	return summarize(stream, attendee), nil
}

// request forces the attendee (creating it when nil) into PENDING. The counter is untouched.
func (s *attendanceService) request(ctx context.Context, stream *domain.Stream, attendee *domain.StreamAttendee, memberID, comment string) (*domain.AttendanceResult, error) {
	now := s.policy.Now()
	if attendee == nil {
		attendee = domain.NewStreamAttendee(stream.ID, memberID, domain.RequestPending, false, comment, now)
		if err := s.createAttendee(ctx, attendee); err != nil {
			return nil, err
		}
		return summarize(stream, attendee), nil
	}
	attendee.RequestToJoinStatus = domain.RequestPending
	attendee.IsAttending = false
	attendee.AttendeeComment = comment
	attendee.UpdatedAt = now
	if err := s.attendees.Update(ctx, attendee); err != nil {
		return nil, fmt.Errorf("update attendee: %w", err)
	}
	return summarize(stream, attendee), nil
}

func (s *attendanceService) createAttendee(ctx context.Context, attendee *domain.StreamAttendee) error {
	if err := s.attendees.Create(ctx, attendee); err != nil {
		// A concurrent request won the (stream, member) unique constraint.
		if errors.Is(err, domain.ErrDuplicateAttendee) {
			return &domain.RequestStatusError{Err: domain.ErrAlreadyRequestedToJoin}
		}
		return fmt.Errorf("create attendee: %w", err)
	}
	return nil
}

// raceLoser reports the status of the row that won a concurrent insert for the same
// member. The failed transaction is already rolled back, so the row is read outside it.
// The status stays empty when the row cannot be read.
func (s *attendanceService) raceLoser(ctx context.Context, streamID, memberID string, err error) error {
	var statusErr *domain.RequestStatusError
	if !errors.As(err, &statusErr) || statusErr.Status != "" {
		return err
	}
	winner, findErr := s.findAttendee(ctx, streamID, memberID)
	if findErr != nil || winner == nil {
		return err
	}
	if dup := s.policy.CheckNotAlreadyAttendee(winner); dup != nil {
		return dup
	}
	return err
}

func (s *attendanceService) findAttendee(ctx context.Context, streamID, memberID string) (*domain.StreamAttendee, error) {
	attendee, err := s.attendees.GetByStreamAndMember(ctx, streamID, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	return attendee, nil
}

func (s *attendanceService) member(ctx context.Context, memberID string) (*domain.Member, error) {
	return getMember(ctx, s.members, memberID)
}

// committed runs the post-commit side effects of a transition.
func (s *attendanceService) committed(ctx context.Context, kind domain.NotificationKind, stream *domain.Stream, attendee *domain.StreamAttendee, actorID, comment string) {
	s.logger.InfoContext(ctx, "stream transition",
		"action", string(kind),
		"stream_id", stream.ID,
		"member_id", attendee.MemberID,
		"actor_id", actorID,
		"status", string(attendee.RequestToJoinStatus),
		"attending", attendee.IsAttending,
	)
	s.notifier.Notify(ctx, domain.NewNotification(kind, stream, attendee, actorID, comment, s.policy.Now()))
}

func summarize(stream *domain.Stream, attendee *domain.StreamAttendee) *domain.AttendanceResult {
	return &domain.AttendanceResult{
		Attendee: attendee,
		Summary: domain.AttendanceSummary{
			StreamID:            stream.ID,
			TotalAttendees:      stream.TotalAttendees,
			RequestToJoinStatus: attendee.RequestToJoinStatus,
			IsAttending:         attendee.IsAttending,
		},
	}
}

func lockStream(ctx context.Context, streams domain.StreamRepository, id string) (*domain.Stream, error) {
	stream, err := streams.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, fmt.Errorf("lock stream: %w", err)
	}
	return stream, nil
}

func getStream(ctx context.Context, streams domain.StreamRepository, id string) (*domain.Stream, error) {
	stream, err := streams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream, nil
}

func getMember(ctx context.Context, members domain.MemberRepository, id string) (*domain.Member, error) {
	member, err := members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}
