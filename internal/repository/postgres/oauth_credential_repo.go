package postgres

import (
	"context"
	"database/sql"
	"errors"

	"streamhub/internal/domain"
)

// oauthCredentialRepository always writes outside the caller's unit of work: a refresh token
// rotated during a transition that later rolls back must still be kept.
type oauthCredentialRepository struct {
	DB *sql.DB
}

func NewOAuthCredentialRepository(db *sql.DB) domain.OAuthCredentialRepository {
	return &oauthCredentialRepository{
		DB: db,
	}
}

func (r *oauthCredentialRepository) Get(ctx context.Context, memberID, provider string) (*domain.OAuthCredential, error) {
	query := `
		SELECT member_id, provider, refresh_token, updated_at
		FROM member_oauth_tokens
		WHERE member_id = $1 AND provider = $2
	`
	c := &domain.OAuthCredential{}
	err := r.DB.QueryRowContext(ctx, query, memberID, provider).
		Scan(&c.MemberID, &c.Provider, &c.RefreshToken, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *oauthCredentialRepository) Upsert(ctx context.Context, c *domain.OAuthCredential) error {
	query := `
		INSERT INTO member_oauth_tokens (member_id, provider, refresh_token, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, provider)
		DO UPDATE SET refresh_token = EXCLUDED.refresh_token, updated_at = EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, query, c.MemberID, c.Provider, c.RefreshToken, c.UpdatedAt)
	return err
}
