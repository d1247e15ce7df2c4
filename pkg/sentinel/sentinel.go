// Package sentinel defines the error taxonomy shared by the document
// services. Stores return these (optionally wrapped) so handlers can map
// them to HTTP status codes in one place.
package sentinel

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound signals an unknown document or master-data id.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate code or duplicate confirmation.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable signals an infrastructure failure (database, blob store).
	// Reads hitting this are safe to retry; writes are not.
	ErrUnavailable = errors.New("unavailable")
)

// RuleError is a business-rule rejection. It is terminal: the caller must not
// retry, and no partial write has happened.
type RuleError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RuleError) Error() string {
	return e.Message
}

// NewRuleError builds a RuleError with a formatted message.
func NewRuleError(code, format string, args ...any) *RuleError {
	return &RuleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsRule reports whether err is (or wraps) a RuleError.
func IsRule(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case IsRule(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
