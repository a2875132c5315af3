package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/domain"
)

func TestAttendance_JoinPublicStream(t *testing.T) {
	f := newFixture(t)
	s := f.addStream()
	f.addMember("u1")

	res, err := f.attendance.Join(context.Background(), s.ID, "u1", "hi")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestApproved, res.Attendee.RequestToJoinStatus)
	assert.True(t, res.Attendee.IsAttending)
	assert.Equal(t, "hi", res.Attendee.AttendeeComment)
	assert.Equal(t, int64(1), res.Summary.TotalAttendees)
	assert.Equal(t, int64(1), f.total(s.ID))

	require.Len(t, f.sync.requests, 1)
	req, ok := f.sync.requests[0].(domain.AttendeeSync)
	require.True(t, ok)
	assert.Equal(t, domain.SyncJoin, req.Operation())
	assert.Equal(t, "u1@example.com", req.Attendee.Email)
	assert.Equal(t, s.ExternalID, req.Target().ExternalID)

	assert.Equal(t, []domain.NotificationKind{domain.NotificationJoined}, f.notifier.kinds())
}

func TestAttendance_RequestToJoinPrivateStream(t *testing.T) {
	f := newFixture(t)
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	f.addMember("u2")

	res, err := f.attendance.RequestToJoin(context.Background(), s.ID, "u2", "let me in")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestPending, res.Attendee.RequestToJoinStatus)
	assert.False(t, res.Attendee.IsAttending)
	assert.Equal(t, int64(0), f.total(s.ID))
	assert.Empty(t, f.sync.requests)

	require.Len(t, f.notifier.sent, 1)
	n := f.notifier.sent[0]
	assert.Equal(t, domain.NotificationJoinRequested, n.Kind)
	assert.Equal(t, organizerID, n.OrganizerID)
	assert.Equal(t, "u2", n.ActorMemberID)
	assert.Equal(t, "let me in", n.Comment)
}

func TestAttendance_ApproveThenRequestAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	f.addMember("u2")

	requested, err := f.attendance.RequestToJoin(ctx, s.ID, "u2", "let me in")
	require.NoError(t, err)

	approved, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, requested.Attendee.ID, domain.DecisionApprove, "welcome")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Attendee.RequestToJoinStatus)
	assert.True(t, approved.Attendee.IsAttending)
	assert.Equal(t, "welcome", approved.Attendee.OrganizerComment)
	assert.Equal(t, int64(1), f.total(s.ID))

	require.Len(t, f.sync.requests, 1)
	req := f.sync.requests[0].(domain.AttendeeSync)
	assert.Equal(t, domain.SyncProcessAttendeeRequest, req.Op)
	assert.Equal(t, "u2@example.com", req.Attendee.Email)

	_, err = f.attendance.RequestToJoin(ctx, s.ID, "u2", "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyApprovedRequestToJoin)
	var statusErr *domain.RequestStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, domain.RequestApproved, statusErr.Status)

	assert.Equal(t, []domain.NotificationKind{domain.NotificationJoinRequested, domain.NotificationRequestApproved}, f.notifier.kinds())
}

func TestAttendance_JoinEndedStream(t *testing.T) {
	f := newFixture(t)
	s := f.addStream(withSchedule(testNow.Add(-49*time.Hour), testNow.Add(-48*time.Hour)))
	f.addMember("u4")

	_, err := f.attendance.Join(context.Background(), s.ID, "u4", "")
	assert.ErrorIs(t, err, domain.ErrStreamAlreadyHappened)
	assert.Nil(t, f.attendee(s.ID, "u4"))
	assert.Equal(t, int64(0), f.total(s.ID))

	s2 := f.addStream(withSchedule(testNow.Add(-2*time.Hour), testNow.Add(-time.Minute)))
	_, err = f.attendance.Join(context.Background(), s2.ID, "u4", "")
	assert.ErrorIs(t, err, domain.ErrStreamAlreadyHappened)
}

func TestAttendance_RequestToJoinTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityProtected))
	f.addMember("u1")

	_, err := f.attendance.RequestToJoin(ctx, s.ID, "u1", "")
	require.NoError(t, err)
	_, err = f.attendance.RequestToJoin(ctx, s.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRequestedToJoin)

	assert.Len(t, f.store.attendees, 1)
}

func TestAttendance_ConcurrentCreateMapsToAlreadyRequested(t *testing.T) {
	f := newFixture(t)
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	f.addMember("u1")
	f.store.createAttendeeErr = domain.ErrDuplicateAttendee

	_, err := f.attendance.RequestToJoin(context.Background(), s.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRequestedToJoin)
	assert.Empty(t, f.notifier.sent)
}

func TestAttendance_ConcurrentCreateReportsWinnerStatus(t *testing.T) {
	tests := []struct {
		name       string
		visibility domain.Visibility
		join       bool
		winner     *domain.StreamAttendee
		wantErr    error
		wantStatus domain.RequestToJoinStatus
	}{
		{
			name:       "public join loses to an approved join",
			visibility: domain.VisibilityPublic,
			join:       true,
			winner:     domain.NewStreamAttendee("", "u1", domain.RequestApproved, true, "", testNow),
			wantErr:    domain.ErrAlreadyApprovedRequestToJoin,
			wantStatus: domain.RequestApproved,
		},
		{
			name:       "request loses to a pending request",
			visibility: domain.VisibilityPrivate,
			winner:     domain.NewStreamAttendee("", "u1", domain.RequestPending, false, "", testNow),
			wantErr:    domain.ErrAlreadyRequestedToJoin,
			wantStatus: domain.RequestPending,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.addStream(withVisibility(tt.visibility))
			f.addMember("u1")
			tt.winner.StreamID = s.ID
			f.store.raceWinner = tt.winner

			var err error
			if tt.join {
				_, err = f.attendance.Join(context.Background(), s.ID, "u1", "")
			} else {
				_, err = f.attendance.RequestToJoin(context.Background(), s.ID, "u1", "")
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var statusErr *domain.RequestStatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.wantStatus, statusErr.Status)
			assert.Len(t, f.store.attendees, 1)
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestAttendance_ConcurrentCreateWithUnknownWinner(t *testing.T) {
	f := newFixture(t)
	s := f.addStream()
	f.addMember("u1")
	f.store.createAttendeeErr = domain.ErrDuplicateAttendee

	_, err := f.attendance.Join(context.Background(), s.ID, "u1", "")
	var statusErr *domain.RequestStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Empty(t, statusErr.Status)
	assert.Equal(t, domain.ErrAlreadyRequestedToJoin.Error(), err.Error())
}

func TestAttendance_SyncRunsUnderTimeout(t *testing.T) {
	f := newFixture(t)
	s := f.addStream()
	f.addMember("u1")

	before := time.Now()
	_, err := f.attendance.Join(context.Background(), s.ID, "u1", "")
	require.NoError(t, err)
	_, err = f.attendance.MarkNotAttending(context.Background(), s.ID, "u1")
	require.NoError(t, err)

	require.Len(t, f.sync.deadlines, 2)
	for _, d := range f.sync.deadlines {
		assert.False(t, d.IsZero())
		assert.WithinDuration(t, before.Add(time.Second), d, 500*time.Millisecond)
	}
}

func TestAttendance_OrganizerCannotJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	public := f.addStream()
	private := f.addStream(withVisibility(domain.VisibilityPrivate))

	_, err := f.attendance.Join(ctx, public.ID, organizerID, "")
	assert.ErrorIs(t, err, domain.ErrOwnershipViolation)
	_, err = f.attendance.RequestToJoin(ctx, private.ID, organizerID, "")
	assert.ErrorIs(t, err, domain.ErrOwnershipViolation)
	assert.Empty(t, f.store.attendees)
}

func TestAttendance_JoinRouting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMember("u1")

	private := f.addStream(withVisibility(domain.VisibilityPrivate))
	_, err := f.attendance.Join(ctx, private.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrCannotJoinPrivateStream)

	protected := f.addStream(withVisibility(domain.VisibilityProtected))
	res, err := f.attendance.Join(ctx, protected.ID, "u1", "please")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, res.Attendee.RequestToJoinStatus)
	assert.Equal(t, int64(0), f.total(protected.ID))

	public := f.addStream()
	_, err = f.attendance.RequestToJoin(ctx, public.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrFailedOperation)

	_, err = f.attendance.Join(ctx, "missing", "u1", "")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)

	canceled := f.addStream(withStatus(domain.StreamStatusCanceled))
	_, err = f.attendance.Join(ctx, canceled.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrStreamAlreadyCanceled)
}

func TestAttendance_ProcessRequestGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	other := f.addStream(withVisibility(domain.VisibilityPrivate))
	pending := f.addAttendee(s.ID, "u1", domain.RequestPending, false)
	approved := f.addAttendee(s.ID, "u2", domain.RequestApproved, true)
	foreign := f.addAttendee(other.ID, "u3", domain.RequestPending, false)

	tests := []struct {
		name       string
		actor      string
		attendeeID string
		decision   domain.OrganizerDecision
		wantErr    error
	}{
		{"already approved", organizerID, approved.ID, domain.DecisionApprove, domain.ErrFailedOperation},
		{"not organizer", "u2", pending.ID, domain.DecisionApprove, domain.ErrOwnershipViolation},
		{"attendee of another stream", organizerID, foreign.ID, domain.DecisionApprove, domain.ErrAttendeeNotFound},
		{"unknown attendee", organizerID, "nope", domain.DecisionApprove, domain.ErrAttendeeNotFound},
		{"bad decision", organizerID, pending.ID, domain.OrganizerDecision("MAYBE"), domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.attendance.ProcessRequest(ctx, s.ID, tt.actor, tt.attendeeID, tt.decision, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, int64(1), f.total(s.ID))
	assert.Empty(t, f.sync.requests)
}

func TestAttendance_DisapproveThenReapprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityProtected))
	a := f.addAttendee(s.ID, "u1", domain.RequestPending, false)

	res, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, a.ID, domain.DecisionDisapprove, "not this time")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDisapproved, res.Attendee.RequestToJoinStatus)
	assert.False(t, res.Attendee.IsAttending)
	assert.Equal(t, "not this time", f.attendee(s.ID, "u1").OrganizerComment)
	assert.Equal(t, int64(0), f.total(s.ID))
	assert.Empty(t, f.sync.requests)

	res, err = f.attendance.ProcessRequest(ctx, s.ID, organizerID, a.ID, domain.DecisionApprove, "ok then")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, res.Attendee.RequestToJoinStatus)
	assert.Equal(t, int64(1), f.total(s.ID))

	assert.Equal(t, []domain.NotificationKind{domain.NotificationRequestDisapproved, domain.NotificationRequestApproved}, f.notifier.kinds())
}

func TestAttendance_RequestAfterDisapprovalResetsToPending(t *testing.T) {
	f := newFixture(t)
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	a := f.addAttendee(s.ID, "u1", domain.RequestDisapproved, false)

	res, err := f.attendance.RequestToJoin(context.Background(), s.ID, "u1", "second try")
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Attendee.ID)
	assert.Equal(t, domain.RequestPending, res.Attendee.RequestToJoinStatus)
	assert.Equal(t, "second try", f.attendee(s.ID, "u1").AttendeeComment)
	assert.Len(t, f.store.attendees, 1)
}

func TestAttendance_MarkNotAttendingAndResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	f.addAttendee(s.ID, "u1", domain.RequestApproved, true)

	res, err := f.attendance.MarkNotAttending(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.False(t, res.Attendee.IsAttending)
	assert.Equal(t, domain.RequestApproved, res.Attendee.RequestToJoinStatus)
	assert.Equal(t, int64(0), f.total(s.ID))
	assert.Equal(t, []domain.SyncOperation{domain.SyncNotAttending}, f.sync.ops())

	_, err = f.attendance.MarkNotAttending(ctx, s.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrFailedOperation)

	// Still approved: joining a private stream resumes without a new request.
	res, err = f.attendance.Join(ctx, s.ID, "u1", "")
	require.NoError(t, err)
	assert.True(t, res.Attendee.IsAttending)
	assert.Equal(t, int64(1), f.total(s.ID))
	assert.Equal(t, []domain.SyncOperation{domain.SyncNotAttending, domain.SyncJoin}, f.sync.ops())

	_, err = f.attendance.MarkNotAttending(ctx, s.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrAttendeeNotFound)
}

func TestAttendance_ExternalFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream()
	pending := f.addAttendee(s.ID, "u2", domain.RequestPending, false)
	f.addMember("u1")
	f.sync.err = errUpstream

	_, err := f.attendance.Join(ctx, s.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrExternalSync)
	assert.ErrorIs(t, err, errUpstream)
	assert.Nil(t, f.attendee(s.ID, "u1"))
	assert.Equal(t, int64(0), f.total(s.ID))

	_, err = f.attendance.ProcessRequest(ctx, s.ID, organizerID, pending.ID, domain.DecisionApprove, "")
	assert.ErrorIs(t, err, domain.ErrExternalSync)
	assert.Equal(t, domain.RequestPending, f.attendee(s.ID, "u2").RequestToJoinStatus)
	assert.Equal(t, int64(0), f.total(s.ID))

	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, 2, f.store.rollbacks)
}

func TestAttendance_CounterMatchesRecount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityProtected))
	for _, id := range []string{"a", "b", "c", "d"} {
		f.addMember(id)
	}

	steps := []func() error{
		func() error { _, err := f.attendance.RequestToJoin(ctx, s.ID, "a", ""); return err },
		func() error { _, err := f.attendance.RequestToJoin(ctx, s.ID, "b", ""); return err },
		func() error { _, err := f.attendance.Join(ctx, s.ID, "c", ""); return err },
		func() error {
			_, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, f.attendee(s.ID, "a").ID, domain.DecisionApprove, "")
			return err
		},
		func() error {
			_, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, f.attendee(s.ID, "b").ID, domain.DecisionDisapprove, "")
			return err
		},
		func() error {
			_, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, f.attendee(s.ID, "c").ID, domain.DecisionApprove, "")
			return err
		},
		func() error { _, err := f.attendance.MarkNotAttending(ctx, s.ID, "a"); return err },
		func() error { _, err := f.attendance.Join(ctx, s.ID, "a", ""); return err },
		func() error { _, err := f.attendance.RequestToJoin(ctx, s.ID, "b", ""); return err },
		func() error {
			_, err := f.attendance.ProcessRequest(ctx, s.ID, organizerID, f.attendee(s.ID, "b").ID, domain.DecisionApprove, "")
			return err
		},
		func() error { _, err := f.attendance.MarkNotAttending(ctx, s.ID, "c"); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, f.store.countAttending(s.ID), f.total(s.ID), "step %d", i)
	}

	stored, counted, err := f.attendance.VerifyCounter(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored)
	assert.Equal(t, stored, counted)
}

func TestAttendance_ListAttendees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addStream(withVisibility(domain.VisibilityPrivate))
	f.addAttendee(s.ID, "u1", domain.RequestPending, false)
	f.addAttendee(s.ID, "u2", domain.RequestPending, false)
	f.addAttendee(s.ID, "u3", domain.RequestApproved, true)

	page, err := f.attendance.ListAttendees(ctx, s.ID, organizerID, domain.RequestPending, domain.PaginationParams{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Attendees, 1)
	assert.Equal(t, "u1", page.Attendees[0].MemberID)

	page, err = f.attendance.ListAttendees(ctx, s.ID, organizerID, "", domain.PaginationParams{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.NotNil(t, page.Attendees)
	assert.Empty(t, page.Attendees)

	page, err = f.attendance.ListAttendees(ctx, s.ID, organizerID, "", domain.PaginationParams{})
	require.NoError(t, err)
	assert.Len(t, page.Attendees, 3, "zero page params fall back to the first default-sized page")

	_, err = f.attendance.ListAttendees(ctx, s.ID, "u1", "", domain.PaginationParams{Page: 1, PageSize: 10})
	assert.ErrorIs(t, err, domain.ErrOwnershipViolation)

	_, err = f.attendance.ListAttendees(ctx, s.ID, organizerID, "MAYBE", domain.PaginationParams{Page: 1, PageSize: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
