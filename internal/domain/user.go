package domain

import "time"

// Roles a user may hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User owns its borrow set. PasswordHash is never serialized.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Role         string
	MovieIDs     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
