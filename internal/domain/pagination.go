package domain

// Attendee listing page size bounds.
const (
	DefaultAttendeePageSize = 20
	MaxAttendeePageSize     = 100
)

// PaginationParams selects one page of an organizer's attendee listing.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Normalized clamps Page to at least 1 and PageSize into [1, MaxAttendeePageSize].
// A zero PageSize means DefaultAttendeePageSize.
func (p PaginationParams) Normalized() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultAttendeePageSize
	case p.PageSize > MaxAttendeePageSize:
		p.PageSize = MaxAttendeePageSize
	}
	return p
}

// Offset is the number of attendee rows skipped before this page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// AttendeePage is one page of attendees for a stream. Total counts every
// record matching the status filter, not only the ones on this page.
type AttendeePage struct {
	Attendees []*StreamAttendee `json:"attendees"`
	Total     int               `json:"total"`
}

// TotalPages is how many pages of pageSize the filtered records fill.
func (p *AttendeePage) TotalPages(pageSize int) int {
	if p == nil || pageSize < 1 {
		return 0
	}
	return (p.Total + pageSize - 1) / pageSize
}
