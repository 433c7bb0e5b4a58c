package enums

import "fmt"

// ActorRole is a platform permissions role; roles are strictly ordered from
// least to most privileged.
type ActorRole string

const (
	ActorRoleViewer      ActorRole = "viewer"
	ActorRoleContributor ActorRole = "contributor"
	ActorRoleEditor      ActorRole = "editor"
	ActorRoleAdmin       ActorRole = "admin"
	ActorRoleOwner       ActorRole = "owner"
)

var validActorRoles = []ActorRole{
	ActorRoleViewer,
	ActorRoleContributor,
	ActorRoleEditor,
	ActorRoleAdmin,
	ActorRoleOwner,
}

// String returns the literal string for the role.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the role is known.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// Rank returns the privilege order of the role, -1 for unknown roles.
func (a ActorRole) Rank() int {
	for i, candidate := range validActorRoles {
		if candidate == a {
			return i
		}
	}
	return -1
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
