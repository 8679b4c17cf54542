package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

// Authorizer resolves a verified subject's role and checks it against an allow-list.
type Authorizer interface {
	// Authorize returns the principal for subjectID when its role is in allowed.
	// An empty allow-list admits every role.
	Authorize(ctx context.Context, subjectID int64, allowed ...domain.Role) (auth.Principal, error)
}

type authorizer struct {
	users repository.UserRepository
}

func NewAuthorizer(users repository.UserRepository) Authorizer {
	return &authorizer{users: users}
}

func (a *authorizer) Authorize(ctx context.Context, subjectID int64, allowed ...domain.Role) (auth.Principal, error) {
	role, err := a.users.GetRole(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.Principal{}, domain.ErrSubjectNotFound
		}
		return auth.Principal{}, err
	}

	if len(allowed) > 0 && !lo.Contains(allowed, role) {
		return auth.Principal{}, fmt.Errorf("%w: role %s", domain.ErrPermissionDenied, role)
	}
	return auth.Principal{UserID: subjectID, Role: role}, nil
}
