package auth

// Organization role constants.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// AllRoles returns all valid organization roles.
func AllRoles() []string {
	return []string{RoleMember, RoleAdmin, RoleOwner}
}

// WriteRoles returns roles that can issue fines and edit players or presets.
func WriteRoles() []string {
	return []string{RoleAdmin, RoleOwner}
}
