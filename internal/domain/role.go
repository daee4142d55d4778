package domain

// Role determines which data a caller can see and which actions are permitted.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent, RoleStaff, RoleAdmin:
		return Role(raw), true
	}
	return "", false
}
