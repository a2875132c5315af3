package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"streamhub/internal/delivery/http/helpers"
	"streamhub/internal/domain"
)

type CredentialController struct {
	Logger      *slog.Logger
	Credentials domain.BroadcastCredentials
}

func NewCredentialController(logger *slog.Logger, creds domain.BroadcastCredentials) *CredentialController {
	return &CredentialController{Logger: logger, Credentials: creds}
}

// SaveBroadcastCredentialRequest is the request body for PUT /api/v1/me/broadcast-credentials.
type SaveBroadcastCredentialRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate implements helpers.Validator.
func (s *SaveBroadcastCredentialRequest) Validate() []string {
	s.RefreshToken = strings.TrimSpace(s.RefreshToken)
	if s.RefreshToken == "" {
		return []string{"refresh_token is required"}
	}
	return nil
}

// SaveBroadcastCredential godoc
// @Summary Store the caller's broadcast platform refresh token
// @Description The token is encrypted at rest and used to create and update the caller's live broadcasts.
// @Tags members
// @Accept json
// @Security BearerAuth
// @Param body body controllers.SaveBroadcastCredentialRequest true "OAuth2 refresh token"
// @Success 204
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /api/v1/me/broadcast-credentials [put]
func (c *CredentialController) SaveBroadcastCredential(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}
	var req SaveBroadcastCredentialRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Credentials.SaveRefreshToken(r.Context(), memberID, req.RefreshToken); err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
