package repository

import (
	"context"

	"blog-api/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// GetByLogin matches either the username or the email and includes the password hash.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	// GetRole is the only lookup that reads the role column.
	GetRole(ctx context.Context, id int64) (domain.Role, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateRole(ctx context.Context, id int64, role domain.Role) error
}
