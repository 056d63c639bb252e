package models

// Role is the coarse authorization role carried by a caller's token.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleDevice     Role = "device" // biometric capture station
)

// Valid returns true for the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleDevice:
		return true
	}
	return false
}

// Principal is the authenticated caller. ID is the stable identifier used as
// instructorId throughout the service.
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin returns true for administrators.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanActFor reports whether the principal may act on sessions owned by instructorID.
func (p Principal) CanActFor(instructorID string) bool {
	return p.IsAdmin() || (p.Role == RoleInstructor && p.ID == instructorID)
}
