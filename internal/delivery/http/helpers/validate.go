package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxRequestBody bounds stream and attendance request bodies. The largest is a
// stream create/update with its description.
const maxRequestBody = 64 << 10

// Validator is implemented by request DTOs that check their own fields.
// Validate returns one message per problem; nil or empty means valid.
type Validator interface {
	Validate() []string
}

// DecodeAndValidate decodes a required JSON body into dest, rejecting unknown
// fields and bodies over maxRequestBody, then runs dest's Validator if any.
// On failure it writes a 400 bad_request and returns false; callers return at once.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	return decode(w, r, dest, false)
}

// DecodeOptionalAndValidate is DecodeAndValidate for bodies that may be absent,
// such as the optional comment on join, request and leave calls. An empty body
// leaves dest untouched and is reported as ok.
func DecodeOptionalAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	return decode(w, r, dest, true)
}

func decode(w http.ResponseWriter, r *http.Request, dest any, optional bool) bool {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return true
		}
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "request body is required")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return false
	}
	if v, ok := dest.(Validator); ok {
		if errs := v.Validate(); len(errs) > 0 {
			WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, strings.Join(errs, "; "))
			return false
		}
	}
	return true
}
