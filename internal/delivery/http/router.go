package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"streamhub/internal/delivery/http/controllers"
	"streamhub/internal/delivery/http/helpers"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Streams     *controllers.StreamController
	Attendance  *controllers.AttendanceController
	Credentials *controllers.CredentialController
}

// NewRouter initializes the HTTP router with all application routes.
// requireAuth wraps every /api/v1 route.
func NewRouter(c Controllers, requireAuth func(http.HandlerFunc) http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Streams
	mux.HandleFunc("POST /api/v1/streams", requireAuth(c.Streams.CreateStream))
	mux.HandleFunc("GET /api/v1/streams/{streamID}", requireAuth(c.Streams.GetStream))
	mux.HandleFunc("PATCH /api/v1/streams/{streamID}", requireAuth(c.Streams.UpdateStream))
	mux.HandleFunc("DELETE /api/v1/streams/{streamID}", requireAuth(c.Streams.DeleteStream))
	mux.HandleFunc("POST /api/v1/streams/{streamID}/cancel", requireAuth(c.Streams.CancelStream))
	mux.HandleFunc("PUT /api/v1/streams/{streamID}/schedule", requireAuth(c.Streams.RescheduleStream))
	mux.HandleFunc("PUT /api/v1/streams/{streamID}/visibility", requireAuth(c.Streams.ChangeVisibility))

	// Attendance
	mux.HandleFunc("POST /api/v1/streams/{streamID}/attendance", requireAuth(c.Attendance.Join))
	mux.HandleFunc("DELETE /api/v1/streams/{streamID}/attendance", requireAuth(c.Attendance.MarkNotAttending))
	mux.HandleFunc("POST /api/v1/streams/{streamID}/join-requests", requireAuth(c.Attendance.RequestToJoin))
	mux.HandleFunc("GET /api/v1/streams/{streamID}/attendees", requireAuth(c.Attendance.ListAttendees))
	mux.HandleFunc("GET /api/v1/streams/{streamID}/attendees/counter", requireAuth(c.Attendance.VerifyCounter))
	mux.HandleFunc("PUT /api/v1/streams/{streamID}/attendees/{attendeeID}/decision", requireAuth(c.Attendance.ProcessRequest))

	// Members; only mounted when a broadcast provider is configured.
	if c.Credentials != nil {
		mux.HandleFunc("PUT /api/v1/me/broadcast-credentials", requireAuth(c.Credentials.SaveBroadcastCredential))
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
