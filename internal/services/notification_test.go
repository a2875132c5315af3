package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/domain"
)

type published struct {
	channel   string
	eventType string
	payload   any
}

type fakePublisher struct {
	events []published
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, channel, eventType string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel, eventType, payload})
	return nil
}

type fakeEmailService struct {
	joinRequests []*domain.JoinRequestEmailData
	decisions    []*domain.RequestDecisionEmailData
}

func (f *fakeEmailService) SendJoinRequest(ctx context.Context, data *domain.JoinRequestEmailData) error {
	f.joinRequests = append(f.joinRequests, data)
	return nil
}

func (f *fakeEmailService) SendRequestDecision(ctx context.Context, data *domain.RequestDecisionEmailData) error {
	f.decisions = append(f.decisions, data)
	return nil
}

func notificationFixture() (*memStore, *domain.Stream, *domain.StreamAttendee) {
	store := newMemStore()
	store.members[organizerID] = &domain.Member{ID: organizerID, Email: "org@example.com", DisplayName: "Olga"}
	store.members["u1"] = &domain.Member{ID: "u1", Email: "u1@example.com", DisplayName: "Uma"}
	stream := &domain.Stream{ID: "s-1", OrganizerID: organizerID, Title: "Go meetup"}
	attendee := &domain.StreamAttendee{ID: "a-1", StreamID: "s-1", MemberID: "u1"}
	return store, stream, attendee
}

func TestNotifier_JoinRequestEmailsOrganizer(t *testing.T) {
	store, stream, attendee := notificationFixture()
	pub, mail := &fakePublisher{}, &fakeEmailService{}
	n := NewNotifier(pub, "stream-notifications", mail, memMembers{store}, discardLogger())

	n.Notify(context.Background(), domain.NewNotification(domain.NotificationJoinRequested, stream, attendee, "u1", "let me in", testNow))
	n.Close()

	require.Len(t, pub.events, 1)
	assert.Equal(t, "stream-notifications", pub.events[0].channel)
	assert.Equal(t, "stream.join_requested", pub.events[0].eventType)

	require.Len(t, mail.joinRequests, 1)
	assert.Equal(t, &domain.JoinRequestEmailData{
		Email:         "org@example.com",
		OrganizerName: "Olga",
		RequesterName: "Uma",
		StreamTitle:   "Go meetup",
		Comment:       "let me in",
	}, mail.joinRequests[0])
	assert.Empty(t, mail.decisions)
}

func TestNotifier_DecisionEmailsRequester(t *testing.T) {
	store, stream, attendee := notificationFixture()
	mail := &fakeEmailService{}
	n := NewNotifier(&fakePublisher{}, "c", mail, memMembers{store}, discardLogger())

	n.Notify(context.Background(), domain.NewNotification(domain.NotificationRequestDisapproved, stream, attendee, organizerID, "full", testNow))
	n.Close()

	require.Len(t, mail.decisions, 1)
	assert.Equal(t, "u1@example.com", mail.decisions[0].Email)
	assert.False(t, mail.decisions[0].Approved)
	assert.Equal(t, "full", mail.decisions[0].Comment)
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	store, stream, attendee := notificationFixture()
	delete(store.members, organizerID)
	pub, mail := &fakePublisher{err: errUpstream}, &fakeEmailService{}
	n := NewNotifier(pub, "c", mail, memMembers{store}, discardLogger())

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), domain.NewNotification(domain.NotificationJoinRequested, stream, attendee, "u1", "", testNow))
	})
	// Joined and not-attending notifications are published only.
	n.Notify(context.Background(), domain.NewNotification(domain.NotificationJoined, stream, attendee, "u1", "", testNow))
	n.Close()
	assert.Empty(t, mail.joinRequests)
	assert.Empty(t, mail.decisions)
}

// blockingEmailService holds every send until release is closed.
type blockingEmailService struct {
	fakeEmailService
	started chan struct{}
	release chan struct{}
}

func (b *blockingEmailService) SendRequestDecision(ctx context.Context, data *domain.RequestDecisionEmailData) error {
	b.started <- struct{}{}
	<-b.release
	return b.fakeEmailService.SendRequestDecision(ctx, data)
}

func TestNotifier_EmailDoesNotBlockCaller(t *testing.T) {
	store, stream, attendee := notificationFixture()
	mail := &blockingEmailService{started: make(chan struct{}, 3), release: make(chan struct{})}
	pub := &fakePublisher{}
	n := newNotifier(pub, "c", mail, memMembers{store}, discardLogger(), 1)
	note := domain.NewNotification(domain.NotificationRequestApproved, stream, attendee, organizerID, "", testNow)

	n.Notify(context.Background(), note)
	<-mail.started // the sender holds the first email
	n.Notify(context.Background(), note)
	n.Notify(context.Background(), note) // queue of one is full: dropped

	assert.Len(t, pub.events, 3)
	close(mail.release)
	n.Close()
	assert.Len(t, mail.decisions, 2)
}

func TestNotifier_CanceledRequestStillEmails(t *testing.T) {
	store, stream, attendee := notificationFixture()
	mail := &fakeEmailService{}
	n := NewNotifier(&fakePublisher{}, "c", mail, memMembers{store}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, domain.NewNotification(domain.NotificationRequestApproved, stream, attendee, organizerID, "", testNow))
	cancel()
	n.Close()

	require.Len(t, mail.decisions, 1)
	assert.True(t, mail.decisions[0].Approved)
}

func TestNotifier_NotifyAfterCloseIsDropped(t *testing.T) {
	store, stream, attendee := notificationFixture()
	mail := &fakeEmailService{}
	n := NewNotifier(&fakePublisher{}, "c", mail, memMembers{store}, discardLogger())
	n.Close()

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), domain.NewNotification(domain.NotificationRequestApproved, stream, attendee, organizerID, "", testNow))
	})
	n.Close()
	assert.Empty(t, mail.decisions)
}
