package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

const (
	maxTitleLength   = 200
	maxSlugLength    = 80
	maxSlugAttempts  = 20
	fallbackPostSlug = "post"
)

// PostWriters may create posts.
var PostWriters = []domain.Role{domain.RoleAuthor, domain.RoleAdmin}

// CreatePostInput carries a new post.
type CreatePostInput struct {
	Title string
	Body  string
	Image *Upload
}

// UpdatePostInput carries a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	Title       *string
	Body        *string
	Image       *Upload
	RemoveImage bool
}

// PostService manages the post lifecycle: publish, read, edit, delete and likes.
type PostService interface {
	Create(ctx context.Context, actor auth.Principal, in CreatePostInput) (*domain.Post, error)
	// Get returns the post and counts the read as one view.
	Get(ctx context.Context, slug string) (*domain.Post, error)
	List(ctx context.Context, query domain.PostQuery) (*domain.PostPage, error)
	Update(ctx context.Context, actor auth.Principal, slug string, in UpdatePostInput) (*domain.Post, error)
	Delete(ctx context.Context, actor auth.Principal, slug string) error
	ToggleLike(ctx context.Context, actor auth.Principal, slug string) (*domain.Post, bool, error)
}

type postService struct {
	posts  repository.PostRepository
	media  MediaService
	logger *logrus.Logger
}

func NewPostService(posts repository.PostRepository, media MediaService, logger *logrus.Logger) PostService {
	return &postService{
		posts:  posts,
		media:  media,
		logger: logger,
	}
}

func (s *postService) Create(ctx context.Context, actor auth.Principal, in CreatePostInput) (*domain.Post, error) {
	if !actor.HasRole(PostWriters...) {
		return nil, domain.ErrPermissionDenied
	}

	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	body, err := validateBody(in.Body)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		Title:    title,
		Body:     body,
		AuthorID: actor.UserID,
	}

	if in.Image != nil {
		key, err := s.media.Upload(ctx, MediaPost, *in.Image)
		if err != nil {
			return nil, err
		}
		post.FeaturedImageKey = key
	}

	if err := s.insertWithUniqueSlug(ctx, post); err != nil {
		s.discardImage(ctx, post.FeaturedImageKey)
		return nil, err
	}

	return s.posts.GetBySlug(ctx, post.Slug)
}

// insertWithUniqueSlug lets the unique index arbitrate: base, base-2, base-3, ...
// and finally a random suffix.
func (s *postService) insertWithUniqueSlug(ctx context.Context, post *domain.Post) error {
	base := MakeSlug(post.Title)
	for attempt := 1; attempt <= maxSlugAttempts+1; attempt++ {
		switch {
		case attempt == 1:
			post.Slug = base
		case attempt <= maxSlugAttempts:
			post.Slug = fmt.Sprintf("%s-%d", base, attempt)
		default:
			post.Slug = fmt.Sprintf("%s-%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		}

		_, err := s.posts.Create(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("slug for %q: %w", post.Title, domain.ErrConflict)
}

func (s *postService) Get(ctx context.Context, slug string) (*domain.Post, error) {
	if err := s.posts.IncrementViews(ctx, slug); err != nil {
		return nil, err
	}
	return s.posts.GetBySlug(ctx, slug)
}

func (s *postService) List(ctx context.Context, query domain.PostQuery) (*domain.PostPage, error) {
	query = query.Normalize()
	posts, total, err := s.posts.List(ctx, query)
	if err != nil {
		return nil, err
	}
	return domain.NewPostPage(posts, query, total), nil
}

func (s *postService) Update(ctx context.Context, actor auth.Principal, slug string, in UpdatePostInput) (*domain.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(post.AuthorID) {
		return nil, domain.ErrPermissionDenied
	}

	if in.Title != nil {
		if post.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Body != nil {
		if post.Body, err = validateBody(*in.Body); err != nil {
			return nil, err
		}
	}

	previousImage := post.FeaturedImageKey
	if in.RemoveImage {
		post.FeaturedImageKey = ""
	}
	if in.Image != nil {
		key, err := s.media.Upload(ctx, MediaPost, *in.Image)
		if err != nil {
			return nil, err
		}
		post.FeaturedImageKey = key
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if post.FeaturedImageKey != previousImage {
			s.discardImage(ctx, post.FeaturedImageKey)
		}
		return nil, err
	}
	if post.FeaturedImageKey != previousImage {
		s.discardImage(ctx, previousImage)
	}

	return s.posts.GetBySlug(ctx, slug)
}

func (s *postService) Delete(ctx context.Context, actor auth.Principal, slug string) error {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !actor.Owns(post.AuthorID) {
		return domain.ErrPermissionDenied
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.discardImage(ctx, post.FeaturedImageKey)
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, actor auth.Principal, slug string) (*domain.Post, bool, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}

	liked, err := s.posts.ToggleLike(ctx, post.ID, actor.UserID)
	if err != nil {
		return nil, false, err
	}

	post, err = s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	return post, liked, nil
}

// discardImage removes an image that is no longer referenced. Failures only warn.
func (s *postService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("delete image")
	}
}

// MakeSlug derives the base slug for a title.
func MakeSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return fallbackPostSlug
	}
	return s
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", domain.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return title, nil
}

func validateBody(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", domain.NewValidationError("body", "is required")
	}
	return body, nil
}
