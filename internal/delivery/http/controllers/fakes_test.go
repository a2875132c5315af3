package controllers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"streamhub/internal/delivery/http/middleware"
	"streamhub/internal/domain"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testStreamID   = "5b1d7c3e-8a2f-4e6b-9c1d-2f3a4b5c6d7e"
	testAttendeeID = "0e9d8c7b-6a5f-4e3d-8c2b-1a0f9e8d7c6b"
	testMemberID   = "member-1"
)

// newRequest builds a request with path values set, authenticated as memberID unless empty.
func newRequest(method, target, body, memberID string, pathValues map[string]string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range pathValues {
		r.SetPathValue(k, v)
	}
	if memberID != "" {
		r = r.WithContext(middleware.SetMemberID(r.Context(), memberID))
	}
	return r
}

// fakeStreamService implements domain.StreamService for handler tests.
type fakeStreamService struct {
	stream     *domain.Stream
	err        error
	lastCreate domain.CreateStreamCommand
	lastPatch  domain.StreamPatch
	lastActor  string
	lastID     string
	lastStart  time.Time
	lastTZ     string
}

func (f *fakeStreamService) Create(_ context.Context, cmd domain.CreateStreamCommand) (*domain.Stream, error) {
	f.lastCreate = cmd
	return f.stream, f.err
}

func (f *fakeStreamService) Get(_ context.Context, id string) (*domain.Stream, error) {
	f.lastID = id
	return f.stream, f.err
}

func (f *fakeStreamService) Update(_ context.Context, id, actor string, patch domain.StreamPatch) (*domain.Stream, error) {
	f.lastID, f.lastActor, f.lastPatch = id, actor, patch
	return f.stream, f.err
}

func (f *fakeStreamService) Cancel(_ context.Context, id, actor string) (*domain.Stream, error) {
	f.lastID, f.lastActor = id, actor
	return f.stream, f.err
}

func (f *fakeStreamService) Delete(_ context.Context, id, actor string) error {
	f.lastID, f.lastActor = id, actor
	return f.err
}

func (f *fakeStreamService) Reschedule(_ context.Context, id, actor string, start, _ time.Time, tz string) (*domain.Stream, error) {
	f.lastID, f.lastActor, f.lastStart, f.lastTZ = id, actor, start, tz
	return f.stream, f.err
}

type fakeVisibilityService struct {
	change *domain.VisibilityChange
	err    error
	last   domain.Visibility
}

func (f *fakeVisibilityService) ChangeVisibility(_ context.Context, _, _ string, v domain.Visibility) (*domain.VisibilityChange, error) {
	f.last = v
	return f.change, f.err
}

// fakeAttendanceService implements domain.AttendanceService for handler tests.
type fakeAttendanceService struct {
	result       *domain.AttendanceResult
	page         *domain.AttendeePage
	err          error
	stored       int64
	counted      int64
	lastComment  string
	lastDecision domain.OrganizerDecision
	lastAttendee string
	lastStatus   domain.RequestToJoinStatus
	lastPage     domain.PaginationParams
	calls        []string
}

func (f *fakeAttendanceService) Join(_ context.Context, _, _, comment string) (*domain.AttendanceResult, error) {
	f.calls = append(f.calls, "join")
	f.lastComment = comment
	return f.result, f.err
}

func (f *fakeAttendanceService) RequestToJoin(_ context.Context, _, _, comment string) (*domain.AttendanceResult, error) {
	f.calls = append(f.calls, "request")
	f.lastComment = comment
	return f.result, f.err
}

func (f *fakeAttendanceService) ProcessRequest(_ context.Context, _, _, attendeeID string, decision domain.OrganizerDecision, comment string) (*domain.AttendanceResult, error) {
	f.calls = append(f.calls, "process")
	f.lastAttendee, f.lastDecision, f.lastComment = attendeeID, decision, comment
	return f.result, f.err
}

func (f *fakeAttendanceService) MarkNotAttending(_ context.Context, _, _ string) (*domain.AttendanceResult, error) {
	f.calls = append(f.calls, "leave")
	return f.result, f.err
}

func (f *fakeAttendanceService) ListAttendees(_ context.Context, _, _ string, status domain.RequestToJoinStatus, page domain.PaginationParams) (*domain.AttendeePage, error) {
	f.lastStatus, f.lastPage = status, page
	return f.page, f.err
}

func (f *fakeAttendanceService) VerifyCounter(_ context.Context, _ string) (int64, int64, error) {
	return f.stored, f.counted, f.err
}
