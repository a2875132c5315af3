package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"streamhub/internal/domain"
)

const uniqueViolation = "23505"

const attendeeColumns = `id, stream_id, member_id, request_to_join_status, is_attending, is_speaker, is_organizer,
		attendee_comment, organizer_comment, created_at, updated_at`

type streamAttendeeRepository struct {
	DB *sql.DB
}

func NewStreamAttendeeRepository(db *sql.DB) domain.StreamAttendeeRepository {
	return &streamAttendeeRepository{
		DB: db,
	}
}

func (r *streamAttendeeRepository) Create(ctx context.Context, a *domain.StreamAttendee) error {
	query := `
		INSERT INTO stream_attendees (stream_id, member_id, request_to_join_status, is_attending, is_speaker,
			is_organizer, attendee_comment, organizer_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		a.StreamID, a.MemberID, a.RequestToJoinStatus, a.IsAttending, a.IsSpeaker,
		a.IsOrganizer, a.AttendeeComment, a.OrganizerComment, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateAttendee
		}
		return err
	}
	return nil
}

func (r *streamAttendeeRepository) GetByID(ctx context.Context, id string) (*domain.StreamAttendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM stream_attendees WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *streamAttendeeRepository) GetByStreamAndMember(ctx context.Context, streamID, memberID string) (*domain.StreamAttendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM stream_attendees WHERE stream_id = $1 AND member_id = $2`
	return r.get(ctx, query, streamID, memberID)
}

func (r *streamAttendeeRepository) get(ctx context.Context, query string, args ...any) (*domain.StreamAttendee, error) {
	a, err := scanAttendee(conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *streamAttendeeRepository) Update(ctx context.Context, a *domain.StreamAttendee) error {
	query := `
		UPDATE stream_attendees
		SET request_to_join_status = $2, is_attending = $3, attendee_comment = $4, organizer_comment = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := conn(ctx, r.DB).ExecContext(ctx, query,
		a.ID, a.RequestToJoinStatus, a.IsAttending, a.AttendeeComment, a.OrganizerComment, a.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *streamAttendeeRepository) ListByStream(ctx context.Context, streamID string, status domain.RequestToJoinStatus, page domain.PaginationParams) ([]*domain.StreamAttendee, int, error) {
	q := conn(ctx, r.DB)

	var total int
	countQuery := `SELECT COUNT(*) FROM stream_attendees WHERE stream_id = $1 AND ($2 = '' OR request_to_join_status = $2)`
	if err := q.QueryRowContext(ctx, countQuery, streamID, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + attendeeColumns + `
		FROM stream_attendees
		WHERE stream_id = $1 AND ($2 = '' OR request_to_join_status = $2)
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`
	rows, err := q.QueryContext(ctx, query, streamID, status, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	attendees, err := scanAttendees(rows)
	if err != nil {
		return nil, 0, err
	}
	return attendees, total, nil
}

// ApprovePending promotes every pending request of the stream in one statement.
func (r *streamAttendeeRepository) ApprovePending(ctx context.Context, streamID string) ([]*domain.StreamAttendee, error) {
	query := `
		UPDATE stream_attendees
		SET request_to_join_status = 'APPROVED', is_attending = TRUE, updated_at = NOW()
		WHERE stream_id = $1 AND request_to_join_status = 'PENDING'
		RETURNING ` + attendeeColumns
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, streamID)
	if err != nil {
		return nil, err
	}
	return scanAttendees(rows)
}

func (r *streamAttendeeRepository) CountAttending(ctx context.Context, streamID string) (int64, error) {
	query := `
		SELECT COUNT(*) FROM stream_attendees
		WHERE stream_id = $1 AND request_to_join_status = 'APPROVED' AND is_attending
	`
	var n int64
	if err := conn(ctx, r.DB).QueryRowContext(ctx, query, streamID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendee(row rowScanner) (*domain.StreamAttendee, error) {
	a := &domain.StreamAttendee{}
	err := row.Scan(&a.ID, &a.StreamID, &a.MemberID, &a.RequestToJoinStatus, &a.IsAttending, &a.IsSpeaker,
		&a.IsOrganizer, &a.AttendeeComment, &a.OrganizerComment, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAttendees(rows *sql.Rows) ([]*domain.StreamAttendee, error) {
	defer rows.Close()
	attendees := make([]*domain.StreamAttendee, 0)
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendees, nil
}
