package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"streamhub/internal/domain"
)

// checkViolation is the SQLSTATE of a failed CHECK constraint.
const checkViolation = "23514"

const streamColumns = `id, organizer_id, stream_type, status, visibility, title, description, location,
		starts_at, ends_at, timezone, total_attendees, like_count, external_id, calendar_id, created_at, updated_at`

type streamRepository struct {
	DB *sql.DB
}

func NewStreamRepository(db *sql.DB) domain.StreamRepository {
	return &streamRepository{
		DB: db,
	}
}

func (r *streamRepository) Create(ctx context.Context, s *domain.Stream) error {
	query := `
		INSERT INTO streams (organizer_id, stream_type, status, visibility, title, description, location,
			starts_at, ends_at, timezone, total_attendees, like_count, external_id, calendar_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	return conn(ctx, r.DB).QueryRowContext(ctx, query,
		s.OrganizerID, s.Type, s.Status, s.Visibility, s.Title, s.Description, s.Location,
		s.StartsAt, s.EndsAt, s.Timezone, s.TotalAttendees, s.LikeCount, s.ExternalID, s.CalendarID, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
}

func (r *streamRepository) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	return r.get(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, id)
}

func (r *streamRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Stream, error) {
	return r.get(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1 FOR UPDATE`, id)
}

func (r *streamRepository) get(ctx context.Context, query, id string) (*domain.Stream, error) {
	s := &domain.Stream{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.OrganizerID, &s.Type, &s.Status, &s.Visibility, &s.Title, &s.Description, &s.Location,
		&s.StartsAt, &s.EndsAt, &s.Timezone, &s.TotalAttendees, &s.LikeCount, &s.ExternalID, &s.CalendarID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *streamRepository) UpdateDetails(ctx context.Context, id string, patch domain.StreamPatch) error {
	query := `
		UPDATE streams
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			location = COALESCE($4, location),
			updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, patch.Title, patch.Description, patch.Location)
}

func (r *streamRepository) UpdateSchedule(ctx context.Context, id string, startsAt, endsAt time.Time, timezone string) error {
	query := `UPDATE streams SET starts_at = $2, ends_at = $3, timezone = $4, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, startsAt, endsAt, timezone)
}

func (r *streamRepository) SetStatus(ctx context.Context, id string, status domain.StreamStatus) error {
	return r.exec(ctx, `UPDATE streams SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *streamRepository) SetVisibility(ctx context.Context, id string, visibility domain.Visibility) error {
	return r.exec(ctx, `UPDATE streams SET visibility = $2, updated_at = NOW() WHERE id = $1`, id, visibility)
}

func (r *streamRepository) SetExternalLink(ctx context.Context, id, externalID, calendarID string) error {
	query := `UPDATE streams SET external_id = $2, calendar_id = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, externalID, calendarID)
}

// AdjustAttendees applies delta in a single statement so concurrent joins never lose an update.
func (r *streamRepository) AdjustAttendees(ctx context.Context, id string, delta int) (int64, error) {
	query := `
		UPDATE streams
		SET total_attendees = total_attendees + $2, updated_at = NOW()
		WHERE id = $1 AND total_attendees + $2 >= 0
		RETURNING total_attendees
	`
	var total int64
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, id, delta).Scan(&total)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
			return 0, domain.ErrCounterUnderflow
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		// No row: either the stream is gone or the guard refused to go negative.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, domain.ErrCounterUnderflow
	}
	return total, nil
}

func (r *streamRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx, query, args...)
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
