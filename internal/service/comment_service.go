package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

const maxCommentLength = 5000

// CommentService manages comments scoped to a post.
type CommentService interface {
	Create(ctx context.Context, actor auth.Principal, slug, body string) (*domain.Comment, error)
	// List returns a post's comments oldest first.
	List(ctx context.Context, slug string) ([]domain.Comment, error)
	Delete(ctx context.Context, actor auth.Principal, slug string, commentID int64) error
}

type commentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func NewCommentService(posts repository.PostRepository, comments repository.CommentRepository) CommentService {
	return &commentService{
		posts:    posts,
		comments: comments,
	}
}

func (s *commentService) Create(ctx context.Context, actor auth.Principal, slug, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.NewValidationError("content", "is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, domain.NewValidationError("content", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}

	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		PostID:   post.ID,
		AuthorID: actor.UserID,
		Body:     body,
	}
	id, err := s.comments.Create(ctx, comment)
	if err != nil {
		return nil, err
	}
	return s.comments.GetByID(ctx, id)
}

func (s *commentService) List(ctx context.Context, slug string) ([]domain.Comment, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, post.ID)
}

func (s *commentService) Delete(ctx context.Context, actor auth.Principal, slug string, commentID int64) error {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}

	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.PostID != post.ID {
		return domain.NotFound("comment")
	}
	if !actor.Owns(comment.AuthorID) {
		return domain.ErrPermissionDenied
	}

	return s.comments.Delete(ctx, comment.ID)
}
