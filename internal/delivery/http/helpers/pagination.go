package helpers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"streamhub/internal/domain"
)

// ParseAttendeeListing reads the status filter and page of an attendee listing
// (GET /api/v1/streams/{streamID}/attendees). status is matched case-insensitively
// and may be omitted; any other unknown value is rejected with ErrInvalidInput.
// Missing or malformed page and page_size fall back to the domain defaults.
func ParseAttendeeListing(r *http.Request) (domain.RequestToJoinStatus, domain.PaginationParams, error) {
	q := r.URL.Query()
	status := domain.RequestToJoinStatus(strings.ToUpper(strings.TrimSpace(q.Get("status"))))
	if status != "" && !status.Valid() {
		return "", domain.PaginationParams{}, fmt.Errorf("status %q: %w", q.Get("status"), domain.ErrInvalidInput)
	}
	var params domain.PaginationParams
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		params.PageSize = v
	}
	return status, params.Normalized(), nil
}

// PaginationMeta is the pagination block of an attendee listing response.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewAttendeePageMeta describes page as the params-th page of the listing.
func NewAttendeePageMeta(params domain.PaginationParams, page *domain.AttendeePage) PaginationMeta {
	meta := PaginationMeta{Page: params.Page, PageSize: params.PageSize, TotalPages: page.TotalPages(params.PageSize)}
	if page != nil {
		meta.Total = page.Total
	}
	return meta
}
