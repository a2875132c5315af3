package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"streamhub/internal/domain"
)

type memberRepository struct {
	DB *sql.DB
}

func NewMemberRepository(db *sql.DB) domain.MemberRepository {
	return &memberRepository{
		DB: db,
	}
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	query := `
		SELECT id, email, display_name, country, created_at, updated_at
		FROM members
		WHERE id = $1
	`
	m := &domain.Member{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.Email, &m.DisplayName, &m.Country, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// GetByIDs returns the members found, keyed by id. Unknown ids are absent from the map.
func (r *memberRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Member, error) {
	out := make(map[string]*domain.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT id, email, display_name, country, created_at, updated_at
		FROM members
		WHERE id = ANY($1)
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m := &domain.Member{}
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &m.Country, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
