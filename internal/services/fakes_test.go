package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"streamhub/internal/domain"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory database. Its unit of work snapshots every table and
// restores the snapshot when fn fails, so rollbacks are observable.
type memStore struct {
	streams   map[string]*domain.Stream
	attendees map[string]*domain.StreamAttendee
	members   map[string]*domain.Member
	nextID    int

	createAttendeeErr error
	// raceWinner is committed by a concurrent transaction: the next attendee
	// insert hits the unique constraint and the row appears once the unit of work ends.
	raceWinner *domain.StreamAttendee
	commits    int
	rollbacks  int
}

func newMemStore() *memStore {
	return &memStore{
		streams:   make(map[string]*domain.Stream),
		attendees: make(map[string]*domain.StreamAttendee),
		members:   make(map[string]*domain.Member),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	streams := make(map[string]*domain.Stream, len(m.streams))
	for k, v := range m.streams {
		cp := *v
		streams[k] = &cp
	}
	attendees := make(map[string]*domain.StreamAttendee, len(m.attendees))
	for k, v := range m.attendees {
		cp := *v
		attendees[k] = &cp
	}
	err := fn(ctx)
	if err != nil {
		m.streams, m.attendees = streams, attendees
		m.rollbacks++
	} else {
		m.commits++
	}
	if w := m.raceWinner; w != nil {
		m.raceWinner = nil
		w.ID = m.id("attendee")
		m.attendees[w.ID] = w
	}
	return err
}

func (m *memStore) attendeeFor(streamID, memberID string) *domain.StreamAttendee {
	for _, a := range m.attendees {
		if a.StreamID == streamID && a.MemberID == memberID {
			return a
		}
	}
	return nil
}

// countAttending is the recount the stored counter must always equal.
func (m *memStore) countAttending(streamID string) int64 {
	var n int64
	for _, a := range m.attendees {
		if a.StreamID == streamID && a.Counted() {
			n++
		}
	}
	return n
}

type memStreams struct{ *memStore }

func (r memStreams) Create(ctx context.Context, s *domain.Stream) error {
	s.ID = r.id("stream")
	cp := *s
	r.streams[s.ID] = &cp
	return nil
}

func (r memStreams) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	s, ok := r.streams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r memStreams) GetByIDForUpdate(ctx context.Context, id string) (*domain.Stream, error) {
	return r.GetByID(ctx, id)
}

func (r memStreams) get(id string) (*domain.Stream, error) {
	s, ok := r.streams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r memStreams) UpdateDetails(ctx context.Context, id string, patch domain.StreamPatch) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	applyPatch(s, patch, testNow)
	return nil
}

func (r memStreams) UpdateSchedule(ctx context.Context, id string, startsAt, endsAt time.Time, timezone string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.StartsAt, s.EndsAt, s.Timezone = startsAt, endsAt, timezone
	return nil
}

func (r memStreams) SetStatus(ctx context.Context, id string, status domain.StreamStatus) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.Status = status
	return nil
}

func (r memStreams) SetVisibility(ctx context.Context, id string, visibility domain.Visibility) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.Visibility = visibility
	return nil
}

func (r memStreams) SetExternalLink(ctx context.Context, id, externalID, calendarID string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.ExternalID, s.CalendarID = externalID, calendarID
	return nil
}

func (r memStreams) AdjustAttendees(ctx context.Context, id string, delta int) (int64, error) {
	s, err := r.get(id)
	if err != nil {
		return 0, err
	}
	if s.TotalAttendees+int64(delta) < 0 {
		return 0, domain.ErrCounterUnderflow
	}
	s.TotalAttendees += int64(delta)
	return s.TotalAttendees, nil
}

type memAttendees struct{ *memStore }

func (r memAttendees) Create(ctx context.Context, a *domain.StreamAttendee) error {
	if r.createAttendeeErr != nil {
		return r.createAttendeeErr
	}
	if r.raceWinner != nil {
		return domain.ErrDuplicateAttendee
	}
	if r.attendeeFor(a.StreamID, a.MemberID) != nil {
		return domain.ErrDuplicateAttendee
	}
	a.ID = r.id("attendee")
	cp := *a
	r.attendees[a.ID] = &cp
	return nil
}

func (r memAttendees) GetByID(ctx context.Context, id string) (*domain.StreamAttendee, error) {
	a, ok := r.attendees[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAttendees) GetByStreamAndMember(ctx context.Context, streamID, memberID string) (*domain.StreamAttendee, error) {
	a := r.attendeeFor(streamID, memberID)
	if a == nil {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAttendees) Update(ctx context.Context, a *domain.StreamAttendee) error {
	if _, ok := r.attendees[a.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *a
	r.attendees[a.ID] = &cp
	return nil
}

func (r memAttendees) sorted(streamID string) []*domain.StreamAttendee {
	var out []*domain.StreamAttendee
	for _, a := range r.attendees {
		if a.StreamID == streamID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memAttendees) ListByStream(ctx context.Context, streamID string, status domain.RequestToJoinStatus, page domain.PaginationParams) ([]*domain.StreamAttendee, int, error) {
	var matched []*domain.StreamAttendee
	for _, a := range r.sorted(streamID) {
		if status == "" || a.RequestToJoinStatus == status {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := total
	if page.PageSize > 0 && start+page.PageSize < total {
		end = start + page.PageSize
	}
	return matched[start:end], total, nil
}

func (r memAttendees) ApprovePending(ctx context.Context, streamID string) ([]*domain.StreamAttendee, error) {
	var out []*domain.StreamAttendee
	for _, a := range r.sorted(streamID) {
		if a.RequestToJoinStatus != domain.RequestPending {
			continue
		}
		a.RequestToJoinStatus = domain.RequestApproved
		a.IsAttending = true
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r memAttendees) CountAttending(ctx context.Context, streamID string) (int64, error) {
	return r.countAttending(streamID), nil
}

type memMembers struct{ *memStore }

func (r memMembers) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (r memMembers) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Member, error) {
	out := make(map[string]*domain.Member, len(ids))
	for _, id := range ids {
		if m, ok := r.members[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// recordingDispatcher stands in for the sync coordinator.
type recordingDispatcher struct {
	requests   []domain.SyncRequest
	err        error
	externalID string
	// deadlines holds the context deadline seen by each dispatch; zero when unbounded.
	deadlines []time.Time
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req domain.SyncRequest) (domain.SyncResult, error) {
	deadline, _ := ctx.Deadline()
	d.deadlines = append(d.deadlines, deadline)
	if d.err != nil {
		return domain.SyncResult{}, &domain.ExternalSyncError{Operation: req.Operation(), StreamType: req.Target().StreamType, Err: d.err}
	}
	d.requests = append(d.requests, req)
	if _, ok := req.(domain.CreateStreamSync); ok && d.externalID != "" {
		return domain.SyncResult{ExternalID: d.externalID, Dispatched: true}, nil
	}
	return domain.SyncResult{ExternalID: req.Target().ExternalID, Dispatched: true}, nil
}

func (d *recordingDispatcher) ops() []domain.SyncOperation {
	out := make([]domain.SyncOperation, 0, len(d.requests))
	for _, r := range d.requests {
		out = append(out, r.Operation())
	}
	return out
}

type recordingNotifier struct {
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note domain.Notification) {
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	out := make([]domain.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

// fakeCalendar records calls as "method:calendar:event[:detail]".
type fakeCalendar struct {
	calls []string
	err   error
	newID string
}

func (c *fakeCalendar) record(call string) error {
	if c.err != nil {
		return c.err
	}
	c.calls = append(c.calls, call)
	return nil
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, event domain.CalendarEvent) (string, error) {
	if err := c.record("create:" + calendarID + ":" + event.Title); err != nil {
		return "", err
	}
	return c.newID, nil
}

func (c *fakeCalendar) PatchEvent(ctx context.Context, calendarID, eventID string, patch domain.CalendarEventPatch) error {
	return c.record("patch:" + calendarID + ":" + eventID)
}

func (c *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return c.record("delete:" + calendarID + ":" + eventID)
}

func (c *fakeCalendar) CancelEvent(ctx context.Context, calendarID, eventID string) error {
	return c.record("cancel:" + calendarID + ":" + eventID)
}

func (c *fakeCalendar) RescheduleEvent(ctx context.Context, calendarID, eventID string, startsAt, endsAt time.Time, timezone string) error {
	return c.record("reschedule:" + calendarID + ":" + eventID + ":" + timezone)
}

func (c *fakeCalendar) UpdateVisibility(ctx context.Context, calendarID, eventID string, visibility domain.Visibility) error {
	return c.record("visibility:" + calendarID + ":" + eventID + ":" + string(visibility))
}

func (c *fakeCalendar) AddAttendee(ctx context.Context, calendarID, eventID string, attendee domain.SyncAttendee) error {
	return c.record("add:" + calendarID + ":" + eventID + ":" + attendee.Email)
}

func (c *fakeCalendar) RemoveAttendee(ctx context.Context, calendarID, eventID, email string) error {
	return c.record("remove:" + calendarID + ":" + eventID + ":" + email)
}

// fakeBroadcast records calls as "method:broadcast:token".
type fakeBroadcast struct {
	calls []string
	err   error
	newID string
}

func (b *fakeBroadcast) record(call string) error {
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, call)
	return nil
}

func (b *fakeBroadcast) CreateBroadcast(ctx context.Context, broadcast domain.Broadcast, accessToken string) (string, error) {
	if err := b.record("create:" + broadcast.Title + ":" + accessToken); err != nil {
		return "", err
	}
	return b.newID, nil
}

func (b *fakeBroadcast) PatchBroadcast(ctx context.Context, broadcastID string, patch domain.BroadcastPatch, accessToken string) error {
	return b.record("patch:" + broadcastID + ":" + accessToken)
}

func (b *fakeBroadcast) DeleteBroadcast(ctx context.Context, broadcastID, accessToken string) error {
	return b.record("delete:" + broadcastID + ":" + accessToken)
}

func (b *fakeBroadcast) RescheduleBroadcast(ctx context.Context, broadcastID string, startsAt, endsAt time.Time, accessToken string) error {
	return b.record("reschedule:" + broadcastID + ":" + accessToken)
}

func (b *fakeBroadcast) UpdateBroadcastVisibility(ctx context.Context, broadcastID string, visibility domain.Visibility, accessToken string) error {
	return b.record("visibility:" + broadcastID + ":" + string(visibility) + ":" + accessToken)
}

type fakeTokens struct {
	token string
	err   error
	asked []string
}

func (f *fakeTokens) AccessToken(ctx context.Context, memberID string) (string, error) {
	f.asked = append(f.asked, memberID)
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

var errUpstream = errors.New("upstream unavailable")

// fixture wires every service against one memStore.
type fixture struct {
	store      *memStore
	sync       *recordingDispatcher
	notifier   *recordingNotifier
	policy     *StreamAccessPolicy
	attendance domain.AttendanceService
	visibility domain.VisibilityService
	streams    domain.StreamService
}

const organizerID = "org-1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		store:    store,
		sync:     &recordingDispatcher{},
		notifier: &recordingNotifier{},
		policy:   NewStreamAccessPolicy(func() time.Time { return testNow }),
	}
	logger := discardLogger()
	f.attendance = NewAttendanceService(store, memStreams{store}, memAttendees{store}, memMembers{store}, f.policy, f.sync, f.notifier, logger, time.Second)
	f.visibility = NewVisibilityService(store, memStreams{store}, memAttendees{store}, memMembers{store}, f.policy, f.sync, f.notifier, logger, time.Second)
	f.streams = NewStreamService(store, memStreams{store}, memMembers{store}, CountryCalendars{DefaultID: "cal-default", ByCountry: map[string]string{"FR": "cal-fr"}}, f.policy, f.sync, logger, time.Second)
	f.addMember(organizerID)
	return f
}

func (f *fixture) addMember(id string) *domain.Member {
	m := &domain.Member{ID: id, Email: id + "@example.com", DisplayName: "Member " + id, Country: "US"}
	f.store.members[id] = m
	return m
}

type streamOption func(*domain.Stream)

func withVisibility(v domain.Visibility) streamOption {
	return func(s *domain.Stream) { s.Visibility = v }
}

func withType(t domain.StreamType) streamOption {
	return func(s *domain.Stream) { s.Type = t }
}

func withSchedule(start, end time.Time) streamOption {
	return func(s *domain.Stream) { s.StartsAt, s.EndsAt = start, end }
}

func withStatus(st domain.StreamStatus) streamOption {
	return func(s *domain.Stream) { s.Status = st }
}

// addStream seeds an upcoming ACTIVE PUBLIC event linked to calendar "cal-1".
func (f *fixture) addStream(opts ...streamOption) *domain.Stream {
	s := domain.NewStream(organizerID, domain.StreamTypeEvent, domain.VisibilityPublic, "Go meetup", testNow.Add(30*time.Minute), testNow.Add(time.Hour), "UTC", testNow)
	s.ID = f.store.id("stream")
	s.ExternalID = "evt-" + s.ID
	s.CalendarID = "cal-1"
	for _, opt := range opts {
		opt(s)
	}
	f.store.streams[s.ID] = s
	return s
}

// addAttendee seeds a record and keeps the counter consistent with it.
func (f *fixture) addAttendee(streamID, memberID string, status domain.RequestToJoinStatus, attending bool) *domain.StreamAttendee {
	if _, ok := f.store.members[memberID]; !ok {
		f.addMember(memberID)
	}
	a := domain.NewStreamAttendee(streamID, memberID, status, attending, "", testNow)
	a.ID = f.store.id("attendee")
	f.store.attendees[a.ID] = a
	if a.Counted() {
		f.store.streams[streamID].TotalAttendees++
	}
	return a
}

func (f *fixture) total(streamID string) int64 {
	return f.store.streams[streamID].TotalAttendees
}

func (f *fixture) attendee(streamID, memberID string) *domain.StreamAttendee {
	return f.store.attendeeFor(streamID, memberID)
}
