package enums

import "fmt"

// ActorRole identifies who is driving an order or room mutation.
type ActorRole string

const (
	ActorRoleCustomer   ActorRole = "CUSTOMER"
	ActorRoleVendor     ActorRole = "VENDOR"
	ActorRoleAdmin      ActorRole = "ADMIN"
	ActorRoleSuperAdmin ActorRole = "SUPER_ADMIN"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleVendor,
	ActorRoleAdmin,
	ActorRoleSuperAdmin,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries platform-operator privileges.
func (a ActorRole) IsAdmin() bool {
	return a == ActorRoleAdmin || a == ActorRoleSuperAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
