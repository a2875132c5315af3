package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/delivery/http/controllers"
	"streamhub/internal/delivery/http/middleware"
	"streamhub/internal/domain"
)

type staticVerifier struct{}

func (staticVerifier) Verify(token string) (string, error) {
	if token != "good" {
		return "", domain.ErrInvalidInput
	}
	return "member-1", nil
}

type stubStreams struct{ domain.StreamService }

func (stubStreams) Get(_ context.Context, id string) (*domain.Stream, error) {
	return &domain.Stream{ID: id}, nil
}

type stubAttendance struct {
	domain.AttendanceService
	joined string
}

func (s *stubAttendance) Join(_ context.Context, streamID, actorID, _ string) (*domain.AttendanceResult, error) {
	s.joined = streamID + "/" + actorID
	return &domain.AttendanceResult{Attendee: &domain.StreamAttendee{}}, nil
}

func (s *stubAttendance) VerifyCounter(context.Context, string) (int64, int64, error) {
	return 1, 1, nil
}

func newTestRouter(att *stubAttendance) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(Controllers{
		Streams:     controllers.NewStreamController(logger, stubStreams{}, nil),
		Attendance:  controllers.NewAttendanceController(logger, att),
		Credentials: controllers.NewCredentialController(logger, nil),
	}, middleware.RequireAuth(staticVerifier{}, logger))
}

func TestRouter(t *testing.T) {
	const streamID = "5b1d7c3e-8a2f-4e6b-9c1d-2f3a4b5c6d7e"
	att := &stubAttendance{}
	router := newTestRouter(att)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"api requires auth", http.MethodGet, "/api/v1/streams/" + streamID, "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/streams/" + streamID, "bad", http.StatusUnauthorized},
		{"get stream", http.MethodGet, "/api/v1/streams/" + streamID, "good", http.StatusOK},
		{"join", http.MethodPost, "/api/v1/streams/" + streamID + "/attendance", "good", http.StatusOK},
		{"counter beats attendee wildcard", http.MethodGet, "/api/v1/streams/" + streamID + "/attendees/counter", "good", http.StatusOK},
		{"wrong method", http.MethodPut, "/api/v1/streams/" + streamID + "/attendance", "good", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(""))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			require.Equal(t, tt.wantStatus, rr.Code)
		})
	}
	assert.Equal(t, streamID+"/member-1", att.joined)
}

func TestRouter_WithMiddlewareChain(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.CORS([]string{"https://app.example.com"}, middleware.LoggingMiddleware(logger, newTestRouter(&stubAttendance{})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_CredentialsRouteIsOptional(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(Controllers{
		Streams:    controllers.NewStreamController(logger, stubStreams{}, nil),
		Attendance: controllers.NewAttendanceController(logger, &stubAttendance{}),
	}, middleware.RequireAuth(staticVerifier{}, logger))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/me/broadcast-credentials", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
