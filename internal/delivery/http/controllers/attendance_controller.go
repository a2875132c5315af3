package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"streamhub/internal/delivery/http/helpers"
	"streamhub/internal/domain"
)

// maxCommentLength bounds attendee and organizer comments.
const maxCommentLength = 500

type AttendanceController struct {
	Logger  *slog.Logger
	Service domain.AttendanceService
}

func NewAttendanceController(logger *slog.Logger, svc domain.AttendanceService) *AttendanceController {
	return &AttendanceController{
		Logger:  logger,
		Service: svc,
	}
}

// AttendanceSuccessResponse is the success envelope for attendee transitions.
type AttendanceSuccessResponse struct {
	Data  *domain.AttendanceResult `json:"data"`
	Error *helpers.APIError        `json:"error"`
}

// CommentRequest is the optional body of join and join-request calls.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// Validate implements helpers.Validator.
func (c *CommentRequest) Validate() []string {
	c.Comment = strings.TrimSpace(c.Comment)
	if len(c.Comment) > maxCommentLength {
		return []string{"comment is too long"}
	}
	return nil
}

// decodeComment accepts an empty body as no comment.
func decodeComment(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req CommentRequest
	if !helpers.DecodeOptionalAndValidate(w, r, &req) {
		return "", false
	}
	return req.Comment, true
}

// Join godoc
// @Summary Join a stream
// @Description Joins a PUBLIC stream directly. On a PROTECTED stream a join request is created instead; PRIVATE streams need an explicit join request.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param body body controllers.CommentRequest false "Optional comment for the organizer"
// @Success 200 {object} controllers.AttendanceSuccessResponse
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation or cannot_join_private_stream_without_approval"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_requested_to_join or already_approved_request_to_join (error.status holds the current status)"
// @Failure 410 {object} helpers.APIResponse "error.code: stream_already_happened"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams/{streamID}/attendance [post]
func (c *AttendanceController) Join(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	comment, ok := decodeComment(w, r)
	if !ok {
		return
	}
	res, err := c.Service.Join(r.Context(), streamID, memberID, comment)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// RequestToJoin godoc
// @Summary Ask to join a PRIVATE or PROTECTED stream
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param body body controllers.CommentRequest false "Optional comment for the organizer"
// @Success 201 {object} controllers.AttendanceSuccessResponse "data.attendee.request_to_join_status is PENDING"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_requested_to_join or already_approved_request_to_join"
// @Failure 422 {object} helpers.APIResponse "error.code: failed_operation (public streams are joined directly)"
// @Router /api/v1/streams/{streamID}/join-requests [post]
func (c *AttendanceController) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	comment, ok := decodeComment(w, r)
	if !ok {
		return
	}
	res, err := c.Service.RequestToJoin(r.Context(), streamID, memberID, comment)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, res)
}

// DecisionRequest is the request body for PUT /api/v1/streams/{streamID}/attendees/{attendeeID}/decision.
type DecisionRequest struct {
	Decision domain.OrganizerDecision `json:"decision"`
	Comment  string                   `json:"comment"`
}

// Validate implements helpers.Validator.
func (d *DecisionRequest) Validate() []string {
	var errs []string
	d.Decision = domain.OrganizerDecision(strings.ToUpper(strings.TrimSpace(string(d.Decision))))
	if !d.Decision.Valid() {
		errs = append(errs, "decision must be APPROVE or DISAPPROVE")
	}
	d.Comment = strings.TrimSpace(d.Comment)
	if len(d.Comment) > maxCommentLength {
		errs = append(errs, "comment is too long")
	}
	return errs
}

// ProcessRequest godoc
// @Summary Approve or disapprove a join request
// @Description Organizer only. Approving admits the member and adds them on the external platform; a disapproved request can still be approved later.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param attendeeID path string true "Attendee ID (UUID)"
// @Param body body controllers.DecisionRequest true "Decision"
// @Success 200 {object} controllers.AttendanceSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found or attendee_not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: failed_operation (already approved)"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams/{streamID}/attendees/{attendeeID}/decision [put]
func (c *AttendanceController) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	attendeeID, ok := pathUUID(w, r, "attendeeID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	res, err := c.Service.ProcessRequest(r.Context(), streamID, memberID, attendeeID, req.Decision, req.Comment)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// MarkNotAttending godoc
// @Summary Stop attending a stream
// @Description Keeps the approved request so the member can come back without asking again.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Success 200 {object} controllers.AttendanceSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found or attendee_not_found"
// @Failure 410 {object} helpers.APIResponse "error.code: stream_already_happened"
// @Failure 422 {object} helpers.APIResponse "error.code: failed_operation (not attending)"
// @Router /api/v1/streams/{streamID}/attendance [delete]
func (c *AttendanceController) MarkNotAttending(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	res, err := c.Service.MarkNotAttending(r.Context(), streamID, memberID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// ListAttendeesResponse is the data of GET /api/v1/streams/{streamID}/attendees.
type ListAttendeesResponse struct {
	Items      []*domain.StreamAttendee `json:"items"`
	Pagination helpers.PaginationMeta   `json:"pagination"`
}

// ListAttendeesSuccessResponse is the success envelope for GET /api/v1/streams/{streamID}/attendees.
type ListAttendeesSuccessResponse struct {
	Data  ListAttendeesResponse `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// ListAttendees godoc
// @Summary List a stream's attendee records
// @Description Organizer only. Filter by request status; omit status for all records.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param status query string false "PENDING, APPROVED or DISAPPROVED"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListAttendeesSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Router /api/v1/streams/{streamID}/attendees [get]
func (c *AttendanceController) ListAttendees(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	status, params, err := helpers.ParseAttendeeListing(r)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	page, err := c.Service.ListAttendees(r.Context(), streamID, memberID, status, params)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListAttendeesResponse{
		Items:      page.Attendees,
		Pagination: helpers.NewAttendeePageMeta(params, page),
	})
}

// CounterCheck is the data of GET /api/v1/streams/{streamID}/attendees/counter.
type CounterCheck struct {
	Stored     int64 `json:"stored"`
	Counted    int64 `json:"counted"`
	Consistent bool  `json:"consistent"`
}

// VerifyCounter godoc
// @Summary Recount attending members
// @Description Compares the stored total_attendees with a recount of approved, attending records. Read only.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is a CounterCheck"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Router /api/v1/streams/{streamID}/attendees/counter [get]
func (c *AttendanceController) VerifyCounter(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	stored, counted, err := c.Service.VerifyCounter(r.Context(), streamID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CounterCheck{Stored: stored, Counted: counted, Consistent: stored == counted})
}
