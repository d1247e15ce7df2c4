package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
)

// maxCompanyLen is the maximum length for a company slug.
const maxCompanyLen = 63

// companyRe validates company slugs: lowercase alphanumeric and hyphens,
// must start and end with an alphanumeric character.
var companyRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// CompanyQueryParam is the query parameter name used for company resolution.
const CompanyQueryParam = "company"

// CompanyHeader is the HTTP header used for company resolution.
const CompanyHeader = "X-Company"

// TenantResolver resolves the company context from an HTTP request.
type TenantResolver interface {
	Resolve(r *http.Request) (TenantContext, error)
}

// SingleTenantResolver always returns the "default" company.
type SingleTenantResolver struct{}

// Resolve always returns a TenantContext with Company "default".
func (s SingleTenantResolver) Resolve(_ *http.Request) (TenantContext, error) {
	return TenantContext{Company: "default"}, nil
}

// CompanyTenantResolver reads the company from the request query parameter
// or header. In multi-company mode the company is always required.
type CompanyTenantResolver struct{}

// Resolve extracts the company from the request. It checks the query parameter
// first, then falls back to the X-Company header. Returns an error if the
// company is missing or invalid.
func (n CompanyTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	c := r.URL.Query().Get(CompanyQueryParam)
	if c == "" {
		c = r.Header.Get(CompanyHeader)
	}

	if c == "" {
		return TenantContext{}, fmt.Errorf("company is required in multi-company mode (use ?company= query param or X-Company header)")
	}

	if err := validateCompany(c); err != nil {
		return TenantContext{}, err
	}

	return TenantContext{Company: c}, nil
}

// validateCompany checks that a company slug is lowercase alphanumeric with
// hyphens, 1-63 characters, starting and ending with an alphanumeric character.
func validateCompany(c string) error {
	if len(c) > maxCompanyLen {
		return fmt.Errorf("company %q exceeds maximum length of %d characters", c, maxCompanyLen)
	}
	if !companyRe.MatchString(c) {
		return fmt.Errorf("company %q is invalid: must consist of lowercase alphanumeric characters or hyphens, and must start and end with an alphanumeric character", c)
	}
	return nil
}
