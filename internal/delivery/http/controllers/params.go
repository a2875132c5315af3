package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"streamhub/internal/delivery/http/helpers"
	"streamhub/internal/delivery/http/middleware"
)

// pathUUID reads a UUID path value, writing a 400 when it is missing or malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid "+name)
		return "", false
	}
	return id.String(), true
}

func requireMember(w http.ResponseWriter, r *http.Request) (string, bool) {
	memberID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	return memberID, true
}
