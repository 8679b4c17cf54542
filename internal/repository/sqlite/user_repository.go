package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleReader
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, role, avatar_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.AvatarKey,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %w", domain.ErrConflict)
		}
		return 0, storageErr("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("user last insert id", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, email, avatar_key, created_at, updated_at
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row, false)
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, email, avatar_key, created_at, updated_at, password_hash
FROM users
WHERE username = ? OR email = ?`,
		login,
		strings.ToLower(login),
	)
	return scanUser(row, true)
}

func (r *UserRepository) GetRole(ctx context.Context, id int64) (domain.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, id).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NotFound("user")
		}
		return "", storageErr("query user role", err)
	}
	return domain.Role(role), nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET username=?, email=?, password_hash=COALESCE(NULLIF(?, ''), password_hash), avatar_key=?, updated_at=?
WHERE id=?`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AvatarKey,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %w", domain.ErrConflict)
		}
		return storageErr("update user", err)
	}
	return expectAffected(res, "user")
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET role=?, updated_at=?
WHERE id=?`,
		string(role),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return storageErr("update user role", err)
	}
	return expectAffected(res, "user")
}

// scanUser reads the common user columns, followed by password_hash when withSecret is set.
func scanUser(row rowScanner, withSecret bool) (*domain.User, error) {
	var user domain.User
	dest := []any{
		&user.ID,
		&user.Username,
		&user.Email,
		&user.AvatarKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if withSecret {
		dest = append(dest, &user.PasswordHash)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("user")
		}
		return nil, storageErr("scan user", err)
	}
	return &user, nil
}

func expectAffected(res sql.Result, what string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return storageErr(what+" rows affected", err)
	}
	if aff == 0 {
		return domain.NotFound(what)
	}
	return nil
}
