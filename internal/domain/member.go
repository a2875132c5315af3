package domain

import (
	"context"
	"time"
)

// Member is the identity behind organizers and attendees.
// swagger:model Member
type Member struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	// Country is an ISO 3166-1 alpha-2 code used to pick the organizer's calendar.
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncAttendee returns the member identity sent to external systems.
func (m *Member) SyncAttendee(comment string) SyncAttendee {
	return SyncAttendee{Email: m.Email, DisplayName: m.DisplayName, Comment: comment}
}

// MemberRepository resolves member ids to identities.
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*Member, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*Member, error)
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated member.
type TokenIssuer interface {
	Issue(memberID, email string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated member ID.
type TokenVerifier interface {
	Verify(token string) (memberID string, err error)
}

// OAuthProviderYouTube is the provider key of broadcast platform credentials.
const OAuthProviderYouTube = "youtube"

// OAuthCredential is a member's stored, encrypted refresh token for a provider.
type OAuthCredential struct {
	MemberID     string
	Provider     string
	RefreshToken []byte
	UpdatedAt    time.Time
}

// OAuthCredentialRepository stores encrypted refresh tokens.
type OAuthCredentialRepository interface {
	Get(ctx context.Context, memberID, provider string) (*OAuthCredential, error)
	Upsert(ctx context.Context, cred *OAuthCredential) error
}

// BroadcastCredentials records the refresh token a member granted for the broadcast platform.
type BroadcastCredentials interface {
	SaveRefreshToken(ctx context.Context, memberID, refreshToken string) error
}

// TxManager runs fn inside one unit of work. The transaction travels in the
// context passed to fn; returning an error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
