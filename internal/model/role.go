package model

import "fmt"

// UserRole is the caller's access level as reported by the backend.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
	RoleGuest UserRole = "guest"
)

// ParseRole converts a wire string into a UserRole.
func ParseRole(s string) (UserRole, error) {
	switch r := UserRole(s); r {
	case RoleAdmin, RoleUser, RoleGuest:
		return r, nil
	}
	return "", fmt.Errorf("model: unknown role %q", s)
}

func (r UserRole) String() string {
	return string(r)
}
