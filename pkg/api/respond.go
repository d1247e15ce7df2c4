// Package api holds the small HTTP helpers shared by every document router:
// JSON encoding, error mapping, and request body decoding.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps an error to its HTTP status and writes a JSON error body.
// Rule violations carry their code so clients can branch on it.
func WriteError(w http.ResponseWriter, err error) {
	var te *lifecycle.TransitionError
	if errors.As(err, &te) {
		WriteJSON(w, http.StatusBadRequest, te)
		return
	}
	var re *sentinel.RuleError
	if errors.As(err, &re) {
		status := http.StatusBadRequest
		if re.Code == "AUTHZ_APPROVER_REQUIRED" {
			status = http.StatusForbidden
		}
		WriteJSON(w, status, map[string]string{"error": re.Message, "code": re.Code})
		return
	}
	WriteJSON(w, sentinel.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// PageSize parses the pageSize query parameter, clamped to [1, 100].
func PageSize(r *http.Request, def int) int {
	v := r.URL.Query().Get("pageSize")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
