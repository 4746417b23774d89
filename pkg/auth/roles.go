// Package auth resolves and checks the identities allowed to act on
// recommendations. Tokens are HS256 JWTs carrying a role claim; roles
// are ordered tiers compared by privilege.
package auth

import (
	"errors"
	"fmt"
)

// Role is an ordered access tier: readonly < user < admin.
type Role int

const (
	RoleReadOnly Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleReadOnly:
		return "readonly"
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Meets reports whether r grants at least the privileges of required.
func (r Role) Meets(required Role) bool { return r >= required }

// ParseRole maps config and claim strings to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "readonly":
		return RoleReadOnly, nil
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleReadOnly, fmt.Errorf("unknown role %q", s)
	}
}

// User is the resolved identity attached to a request.
type User struct {
	ID   string
	Name string
	Role Role
}

// ErrForbidden is returned by CheckRole when the user's role does not
// meet the required tier.
var ErrForbidden = errors.New("insufficient role")

// CheckRole verifies that user meets the required role tier.
func CheckRole(user *User, required Role) error {
	if user == nil {
		return fmt.Errorf("no authenticated user: %w", ErrForbidden)
	}
	if !user.Role.Meets(required) {
		return fmt.Errorf("role %s does not meet required %s: %w", user.Role, required, ErrForbidden)
	}
	return nil
}

// DevUser is the identity assumed for every request when
// authentication is disabled for local development.
func DevUser() *User {
	return &User{ID: "dev", Name: "Local Developer", Role: RoleAdmin}
}
