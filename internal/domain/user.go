package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Principal is the authenticated identity attached to a request by the auth
// middleware. Everything upstream of it (session handling, token issuance)
// is an external concern.
type Principal struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the principal bypasses credit checks.
func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// User represents an account as seen by the credit ledger.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
