package domain

import "time"

// Role is the authorization level attached to a user.
type Role string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// User represents an authenticated user of the system.
// Role is only populated by lookups that ask for it explicitly.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	AvatarKey    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public identity shown next to posts and comments.
type UserSummary struct {
	ID        int64
	Username  string
	AvatarKey string
}
