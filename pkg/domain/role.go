package domain

import dErrors "disha/pkg/domain-errors"

// Role identifies the kind of actor issuing a request. The transition table
// in the state registry names which roles may drive which edges.
type Role string

// Supported actor roles.
const (
	RoleMobilizer     Role = "mobilizer"
	RoleCounsellor    Role = "counsellor"
	RoleCenterManager Role = "center_manager"
	RolePOC           Role = "poc"
	RolePPCAdmin      Role = "ppc_admin"
	RoleStateHead     Role = "state_head"
	RoleCompanyHR     Role = "company_hr"
	RoleMIS           Role = "mis"
	RoleSystem        Role = "system"
)

// validRoles is the single source of truth for role membership.
var validRoles = map[Role]bool{
	RoleMobilizer:     true,
	RoleCounsellor:    true,
	RoleCenterManager: true,
	RolePOC:           true,
	RolePPCAdmin:      true,
	RoleStateHead:     true,
	RoleCompanyHR:     true,
	RoleMIS:           true,
	RoleSystem:        true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string { return string(r) }
