// Package tenancy provides per-company context resolution and middleware.
// It supports single-company (backward compatible) and multi-company modes.
package tenancy

// Mode controls how company context is resolved.
type Mode string

const (
	// ModeSingle uses the "default" company for all requests.
	ModeSingle Mode = "single"
	// ModeCompany requires a company per request (multi-company).
	ModeCompany Mode = "company"
)
