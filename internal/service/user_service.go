package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes  = 72
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInviteCode indicates the author invite code is incorrect.
	ErrInvalidInviteCode = fmt.Errorf("%w: invalid invite code", domain.ErrPermissionDenied)
)

// TokenIssuer mints and refreshes session tokens.
type TokenIssuer interface {
	Issue(userID int64) (auth.TokenPair, error)
	VerifyRefresh(token string) (int64, error)
}

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Role       domain.Role
	InviteCode string
	Avatar     *Upload
}

// ProfileInput carries a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Username *string
	Email    *string
	Password *string
	Avatar   *Upload
}

// Session is a user together with freshly issued tokens.
type Session struct {
	User   *domain.User
	Tokens auth.TokenPair
}

// UserConfig controls how roles are granted at registration.
// AdminEmails grants admin to whoever registers such an address first; ownership of the
// address is not verified, so it is meant for bootstrapping and should be emptied once
// the accounts exist.
type UserConfig struct {
	AuthorInviteCode string
	AdminEmails      []string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, login, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Me(ctx context.Context, actor auth.Principal) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor auth.Principal, userID int64, in ProfileInput) (*domain.User, error)
	ChangeRole(ctx context.Context, actor auth.Principal, userID int64, role domain.Role) (*domain.User, error)
}

type userService struct {
	users       repository.UserRepository
	tokens      TokenIssuer
	media       MediaService
	logger      *logrus.Logger
	validate    *validator.Validate
	inviteCode  string
	adminEmails []string
	hashCost    int
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer, media MediaService, cfg UserConfig, logger *logrus.Logger) UserService {
	return &userService{
		users:      users,
		tokens:     tokens,
		media:      media,
		logger:     logger,
		validate:   validator.New(),
		inviteCode: strings.TrimSpace(cfg.AuthorInviteCode),
		adminEmails: lo.FilterMap(cfg.AdminEmails, func(e string, _ int) (string, bool) {
			e = strings.ToLower(strings.TrimSpace(e))
			return e, e != ""
		}),
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validateUsername(username); err != nil {
		return nil, err
	}
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	role, err := s.registrationRole(email, in.Role, in.InviteCode)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}

	if in.Avatar != nil {
		key, err := s.media.Upload(ctx, MediaAvatar, *in.Avatar)
		if err != nil {
			return nil, err
		}
		user.AvatarKey = key
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.discardAvatar(ctx, user.AvatarKey)
		return nil, err
	}

	return s.newSession(user)
}

func (s *userService) registrationRole(email string, requested domain.Role, inviteCode string) (domain.Role, error) {
	if lo.Contains(s.adminEmails, email) {
		return domain.RoleAdmin, nil
	}

	switch requested {
	case "", domain.RoleReader:
		return domain.RoleReader, nil
	case domain.RoleAuthor:
		if s.inviteCode != "" && subtle.ConstantTimeCompare([]byte(strings.TrimSpace(inviteCode)), []byte(s.inviteCode)) != 1 {
			return "", ErrInvalidInviteCode
		}
		return domain.RoleAuthor, nil
	case domain.RoleAdmin:
		return "", fmt.Errorf("%w: admin role cannot be requested", domain.ErrPermissionDenied)
	default:
		return "", domain.NewValidationError("role", "must be reader or author")
	}
}

func (s *userService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Role, err = s.users.GetRole(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.newSession(user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	subject, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.load(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSubjectNotFound
		}
		return nil, err
	}
	return s.newSession(user)
}

func (s *userService) Me(ctx context.Context, actor auth.Principal) (*domain.User, error) {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSubjectNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor auth.Principal, userID int64, in ProfileInput) (*domain.User, error) {
	if !actor.Owns(userID) {
		return nil, domain.ErrPermissionDenied
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := s.validateUsername(username); err != nil {
			return nil, err
		}
		user.Username = username
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := s.validateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	previousAvatar := user.AvatarKey
	if in.Avatar != nil {
		key, err := s.media.Upload(ctx, MediaAvatar, *in.Avatar)
		if err != nil {
			return nil, err
		}
		user.AvatarKey = key
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if user.AvatarKey != previousAvatar {
			s.discardAvatar(ctx, user.AvatarKey)
		}
		return nil, err
	}
	if user.AvatarKey != previousAvatar {
		s.discardAvatar(ctx, previousAvatar)
	}

	return s.load(ctx, userID)
}

func (s *userService) ChangeRole(ctx context.Context, actor auth.Principal, userID int64, role domain.Role) (*domain.User, error) {
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrPermissionDenied
	}
	if !role.Valid() {
		return nil, domain.NewValidationError("role", "must be reader, author or admin")
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

// load fetches a user and explicitly asks for its role.
func (s *userService) load(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role, err = s.users.GetRole(ctx, id); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) newSession(user *domain.User) (*Session, error) {
	tokens, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: sanitizeUser(user), Tokens: tokens}, nil
}

func (s *userService) discardAvatar(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("delete avatar")
	}
}

func (s *userService) validateUsername(username string) error {
	err := s.validate.Var(username, "required,min=3,max=32,excludesall=@")
	if err != nil || strings.ContainsAny(username, " \t\n") {
		return domain.NewValidationError("username", "must be 3-32 characters without spaces or @")
	}
	return nil
}

func (s *userService) validateEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domain.NewValidationError("email", "must be a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return domain.NewValidationError("password", "is required")
	}
	if len(password) < minPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		AvatarKey: user.AvatarKey,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
