package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"streamhub/internal/domain"
)

const (
	mailQueueSize = 256
	mailTimeout   = 30 * time.Second
)

// Notifier publishes every notification on the event bus and emails the party that
// has to act on it. Emails go through a bounded queue drained by one background
// sender, so a slow mail provider never holds up the caller. Failures are logged
// and swallowed; a full queue drops the email.
type Notifier struct {
	publisher domain.EventPublisher
	channel   string
	email     domain.EmailService
	members   domain.MemberRepository
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan queuedMail
	wg     sync.WaitGroup
}

type queuedMail struct {
	ctx  context.Context
	note domain.Notification
}

func NewNotifier(publisher domain.EventPublisher, channel string, email domain.EmailService, members domain.MemberRepository, logger *slog.Logger) *Notifier {
	return newNotifier(publisher, channel, email, members, logger, mailQueueSize)
}

func newNotifier(publisher domain.EventPublisher, channel string, email domain.EmailService, members domain.MemberRepository, logger *slog.Logger, queueSize int) *Notifier {
	n := &Notifier{
		publisher: publisher,
		channel:   channel,
		email:     email,
		members:   members,
		logger:    logger,
		queue:     make(chan queuedMail, queueSize),
	}
	n.wg.Add(1)
	go n.sendLoop()
	return n
}

func (n *Notifier) Notify(ctx context.Context, note domain.Notification) {
	if err := n.publisher.Publish(ctx, n.channel, string(note.Kind), note); err != nil {
		n.logger.ErrorContext(ctx, "publish notification", "kind", note.Kind, "stream_id", note.StreamID, "error", err)
	}
	if !emailed(note.Kind) {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.WarnContext(ctx, "notifier closed, email dropped", "kind", note.Kind, "stream_id", note.StreamID)
		return
	}
	// The request context ends with the response; the email outlives it.
	select {
	case n.queue <- queuedMail{ctx: context.WithoutCancel(ctx), note: note}:
	default:
		n.logger.WarnContext(ctx, "mail queue full, email dropped", "kind", note.Kind, "stream_id", note.StreamID)
	}
}

// Close stops accepting emails and waits for the queued ones to be sent.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) sendLoop() {
	defer n.wg.Done()
	for m := range n.queue {
		ctx, cancel := context.WithTimeout(m.ctx, mailTimeout)
		if err := n.sendEmail(ctx, m.note); err != nil {
			n.logger.ErrorContext(ctx, "email notification", "kind", m.note.Kind, "stream_id", m.note.StreamID, "error", err)
		}
		cancel()
	}
}

func emailed(kind domain.NotificationKind) bool {
	switch kind {
	case domain.NotificationJoinRequested, domain.NotificationRequestApproved, domain.NotificationRequestDisapproved:
		return true
	}
	return false
}

func (n *Notifier) sendEmail(ctx context.Context, note domain.Notification) error {
	switch note.Kind {
	case domain.NotificationJoinRequested:
		people, err := n.people(ctx, note.OrganizerID, note.AttendeeMemberID)
		if err != nil {
			return err
		}
		organizer, requester := people[note.OrganizerID], people[note.AttendeeMemberID]
		return n.email.SendJoinRequest(ctx, &domain.JoinRequestEmailData{
			Email:         organizer.Email,
			OrganizerName: organizer.DisplayName,
			RequesterName: requester.DisplayName,
			StreamTitle:   note.StreamTitle,
			Comment:       note.Comment,
		})
	case domain.NotificationRequestApproved, domain.NotificationRequestDisapproved:
		people, err := n.people(ctx, note.AttendeeMemberID)
		if err != nil {
			return err
		}
		requester := people[note.AttendeeMemberID]
		return n.email.SendRequestDecision(ctx, &domain.RequestDecisionEmailData{
			Email:         requester.Email,
			RequesterName: requester.DisplayName,
			StreamTitle:   note.StreamTitle,
			Approved:      note.Kind == domain.NotificationRequestApproved,
			Comment:       note.Comment,
		})
	}
	return nil
}

func (n *Notifier) people(ctx context.Context, ids ...string) (map[string]*domain.Member, error) {
	members, err := n.members.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			return nil, fmt.Errorf("member %s: %w", id, domain.ErrMemberNotFound)
		}
	}
	return members, nil
}
