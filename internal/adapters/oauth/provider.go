// Package oauth keeps broadcast platform access tokens fresh for stream organizers.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"streamhub/internal/domain"
)

// ErrNoCredential means the member never granted access to the broadcast platform.
var ErrNoCredential = errors.New("no broadcast credentials for member")

// expiryMargin is subtracted from the token lifetime before caching.
const expiryMargin = time.Minute

// Sealer encrypts refresh tokens at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Provider exchanges a member's stored refresh token for an access token.
type Provider struct {
	config     *oauth2.Config
	creds      domain.OAuthCredentialRepository
	sealer     Sealer
	cache      TokenCache
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewProvider builds a provider. httpClient may be nil to use http.DefaultClient.
func NewProvider(cfg Config, creds domain.OAuthCredentialRepository, sealer Sealer, cache TokenCache, httpClient *http.Client, logger *slog.Logger) *Provider {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       cfg.Scopes,
		},
		creds:      creds,
		sealer:     sealer,
		cache:      cache,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

func cacheKey(memberID string) string {
	return domain.OAuthProviderYouTube + ":" + memberID
}

// AccessToken returns a cached access token or refreshes one.
func (p *Provider) AccessToken(ctx context.Context, memberID string) (string, error) {
	key := cacheKey(memberID)
	if token, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.WarnContext(ctx, "token cache read failed", slog.String("member_id", memberID), slog.Any("error", err))
	} else if ok {
		return token, nil
	}

	cred, err := p.creds.Get(ctx, memberID, domain.OAuthProviderYouTube)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	refresh, err := p.sealer.Open(cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to open refresh token: %w", err)
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	token, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: string(refresh)}).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	if token.RefreshToken != "" && token.RefreshToken != string(refresh) {
		if err := p.store(ctx, memberID, token.RefreshToken); err != nil {
			return "", err
		}
		p.logger.InfoContext(ctx, "refresh token rotated", slog.String("member_id", memberID))
	}

	if !token.Expiry.IsZero() {
		if ttl := token.Expiry.Sub(p.now()) - expiryMargin; ttl > 0 {
			if err := p.cache.Set(ctx, key, token.AccessToken, ttl); err != nil {
				p.logger.WarnContext(ctx, "token cache write failed", slog.String("member_id", memberID), slog.Any("error", err))
			}
		}
	}
	return token.AccessToken, nil
}

// SaveRefreshToken stores a newly granted refresh token and forgets any cached access token.
func (p *Provider) SaveRefreshToken(ctx context.Context, memberID, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("refresh token is required: %w", domain.ErrInvalidInput)
	}
	if err := p.store(ctx, memberID, refreshToken); err != nil {
		return err
	}
	if err := p.cache.Delete(ctx, cacheKey(memberID)); err != nil {
		p.logger.WarnContext(ctx, "token cache delete failed", slog.String("member_id", memberID), slog.Any("error", err))
	}
	return nil
}

func (p *Provider) store(ctx context.Context, memberID, refreshToken string) error {
	sealed, err := p.sealer.Seal([]byte(refreshToken))
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}
	return p.creds.Upsert(ctx, &domain.OAuthCredential{
		MemberID:     memberID,
		Provider:     domain.OAuthProviderYouTube,
		RefreshToken: sealed,
		UpdatedAt:    p.now().UTC(),
	})
}
