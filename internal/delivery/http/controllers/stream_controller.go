package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"streamhub/internal/delivery/http/helpers"
	"streamhub/internal/domain"
)

type StreamController struct {
	Logger     *slog.Logger
	Service    domain.StreamService
	Visibility domain.VisibilityService
}

func NewStreamController(logger *slog.Logger, svc domain.StreamService, visibility domain.VisibilityService) *StreamController {
	return &StreamController{
		Logger:     logger,
		Service:    svc,
		Visibility: visibility,
	}
}

// StreamSuccessResponse is the success envelope for endpoints returning one stream.
type StreamSuccessResponse struct {
	Data  *domain.Stream    `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CreateStreamRequest is the request body for POST /api/v1/streams.
type CreateStreamRequest struct {
	StreamType  domain.StreamType `json:"stream_type"`
	Visibility  domain.Visibility `json:"visibility"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	StartsAt    *time.Time        `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	Timezone    string            `json:"timezone"`
	// Instant starts an EVENT now; starts_at must be omitted.
	Instant bool `json:"instant"`
}

// Validate implements helpers.Validator.
func (c *CreateStreamRequest) Validate() []string {
	var errs []string
	if !c.StreamType.Valid() {
		errs = append(errs, "stream_type must be EVENT or LIVE_BROADCAST")
	}
	if !c.Visibility.Valid() {
		errs = append(errs, "visibility must be PUBLIC, PRIVATE or PROTECTED")
	}
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		errs = append(errs, "title is required")
	}
	if c.Instant && c.StartsAt != nil {
		errs = append(errs, "starts_at must be omitted for instant streams")
	}
	if !c.Instant && c.StartsAt == nil {
		errs = append(errs, "starts_at is required")
	}
	if c.EndsAt.IsZero() {
		errs = append(errs, "ends_at is required")
	}
	if c.Timezone == "" {
		errs = append(errs, "timezone is required")
	}
	return errs
}

// CreateStream godoc
// @Summary Create a stream
// @Description Creates an EVENT or LIVE_BROADCAST stream owned by the caller and creates it on the calendar or broadcast platform. If the external call fails nothing is stored.
// @Tags streams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.CreateStreamRequest true "Stream data"
// @Success 201 {object} controllers.StreamSuccessResponse "data contains the created stream"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: member_not_found"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams [post]
func (c *StreamController) CreateStream(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req CreateStreamRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	cmd := domain.CreateStreamCommand{
		OrganizerID: memberID,
		Type:        req.StreamType,
		Visibility:  req.Visibility,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		EndsAt:      req.EndsAt,
		Timezone:    req.Timezone,
		Instant:     req.Instant,
	}
	if req.StartsAt != nil {
		cmd.StartsAt = *req.StartsAt
	}
	stream, err := c.Service.Create(r.Context(), cmd)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, stream)
}

// GetStream godoc
// @Summary Get a stream
// @Tags streams
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Success 200 {object} controllers.StreamSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Router /api/v1/streams/{streamID} [get]
func (c *StreamController) GetStream(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	stream, err := c.Service.Get(r.Context(), streamID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, stream)
}

// UpdateStreamRequest is the request body for PATCH /api/v1/streams/{streamID}. Omitted fields are unchanged.
type UpdateStreamRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

// Validate implements helpers.Validator.
func (u *UpdateStreamRequest) Validate() []string {
	if u.Title == nil && u.Description == nil && u.Location == nil {
		return []string{"at least one of title, description or location is required"}
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return []string{"title must not be empty"}
	}
	return nil
}

// UpdateStream godoc
// @Summary Update stream details
// @Description Organizer only. Patches title, description and location here and on the external platform.
// @Tags streams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param body body controllers.UpdateStreamRequest true "Fields to change"
// @Success 200 {object} controllers.StreamSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: stream_already_canceled"
// @Failure 410 {object} helpers.APIResponse "error.code: stream_already_happened"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams/{streamID} [patch]
func (c *StreamController) UpdateStream(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req UpdateStreamRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	stream, err := c.Service.Update(r.Context(), streamID, memberID, domain.StreamPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, stream)
}

// CancelStream godoc
// @Summary Cancel a stream
// @Description Organizer only, not while the stream is live.
// @Tags streams
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Success 200 {object} controllers.StreamSuccessResponse
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: stream_already_canceled"
// @Failure 423 {object} helpers.APIResponse "error.code: stream_ongoing"
// @Router /api/v1/streams/{streamID}/cancel [post]
func (c *StreamController) CancelStream(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	stream, err := c.Service.Cancel(r.Context(), streamID, memberID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, stream)
}

// DeleteStream godoc
// @Summary Delete a stream
// @Description Organizer only, not while the stream is live. The stream is soft deleted and then reads as not found.
// @Tags streams
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Success 204
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 404 {object} helpers.APIResponse "error.code: stream_not_found"
// @Failure 423 {object} helpers.APIResponse "error.code: stream_ongoing"
// @Router /api/v1/streams/{streamID} [delete]
func (c *StreamController) DeleteStream(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	if err := c.Service.Delete(r.Context(), streamID, memberID); err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RescheduleStreamRequest is the request body for PUT /api/v1/streams/{streamID}/schedule.
type RescheduleStreamRequest struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Timezone string    `json:"timezone"`
}

// Validate implements helpers.Validator.
func (s *RescheduleStreamRequest) Validate() []string {
	var errs []string
	if s.StartsAt.IsZero() || s.EndsAt.IsZero() {
		errs = append(errs, "starts_at and ends_at are required")
	}
	if s.Timezone == "" {
		errs = append(errs, "timezone is required")
	}
	return errs
}

// RescheduleStream godoc
// @Summary Reschedule a stream
// @Tags streams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param body body controllers.RescheduleStreamRequest true "New schedule"
// @Success 200 {object} controllers.StreamSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 423 {object} helpers.APIResponse "error.code: stream_ongoing"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams/{streamID}/schedule [put]
func (c *StreamController) RescheduleStream(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req RescheduleStreamRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	stream, err := c.Service.Reschedule(r.Context(), streamID, memberID, req.StartsAt, req.EndsAt, req.Timezone)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, stream)
}

// ChangeVisibilityRequest is the request body for PUT /api/v1/streams/{streamID}/visibility.
type ChangeVisibilityRequest struct {
	Visibility domain.Visibility `json:"visibility"`
}

// Validate implements helpers.Validator.
func (v *ChangeVisibilityRequest) Validate() []string {
	if !v.Visibility.Valid() {
		return []string{"visibility must be PUBLIC, PRIVATE or PROTECTED"}
	}
	return nil
}

// VisibilityChangeSuccessResponse is the success envelope for PUT /api/v1/streams/{streamID}/visibility.
type VisibilityChangeSuccessResponse struct {
	Data  *domain.VisibilityChange `json:"data"`
	Error *helpers.APIError        `json:"error"`
}

// ChangeVisibility godoc
// @Summary Change stream visibility
// @Description Organizer only, upcoming streams only. Opening a PRIVATE or PROTECTED stream to PUBLIC approves every pending join request.
// @Tags streams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param streamID path string true "Stream ID (UUID)"
// @Param body body controllers.ChangeVisibilityRequest true "Target visibility"
// @Success 200 {object} controllers.VisibilityChangeSuccessResponse "data.promoted lists attendees approved by the change"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: ownership_violation"
// @Failure 410 {object} helpers.APIResponse "error.code: stream_already_happened"
// @Failure 423 {object} helpers.APIResponse "error.code: stream_ongoing"
// @Failure 502 {object} helpers.APIResponse "error.code: external_sync_failed"
// @Router /api/v1/streams/{streamID}/visibility [put]
func (c *StreamController) ChangeVisibility(w http.ResponseWriter, r *http.Request) {
	streamID, ok := pathUUID(w, r, "streamID")
	if !ok {
		return
	}
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req ChangeVisibilityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	change, err := c.Visibility.ChangeVisibility(r.Context(), streamID, memberID, req.Visibility)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, change)
}
