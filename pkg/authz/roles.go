package authz

import "github.com/sigeso/sst-registry/pkg/sentinel"

// Role names carried in the X-Remote-Group header.
const (
	RoleSupervisor = "supervisor"
	RoleApprover   = "aprobador"
	RoleAdmin      = "admin"
)

// HasRole reports whether the identity carries the given role.
func (id Identity) HasRole(role string) bool {
	for _, g := range id.Groups {
		if g == role {
			return true
		}
	}
	return false
}

// CanApprove reports whether the identity may execute approval transitions.
// Admins approve implicitly.
func (id Identity) CanApprove() bool {
	return id.HasRole(RoleApprover) || id.HasRole(RoleAdmin)
}

// RequireApprover returns a rule error unless the context identity carries
// the approver or admin role.
func RequireApprover(id Identity) error {
	if id.CanApprove() {
		return nil
	}
	return sentinel.NewRuleError("AUTHZ_APPROVER_REQUIRED",
		"user %q lacks the %s role required for approval transitions", id.User, RoleApprover)
}
