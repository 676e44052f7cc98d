package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "domainwatch/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error envelope. Internal
// errors omit the description so datastore details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		body["error_description"] = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// Decode parses a JSON request body into dst. A malformed body yields a
// bad_request error suitable for WriteError.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
