package repository

import (
	"context"

	"blog-api/internal/domain"
)

// PostRepository exposes persistence operations for posts and their like sets.
type PostRepository interface {
	// Create inserts post and returns domain.ErrConflict when its slug is taken.
	Create(ctx context.Context, post *domain.Post) (int64, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Post, error)
	List(ctx context.Context, query domain.PostQuery) ([]domain.Post, int64, error)
	Update(ctx context.Context, post *domain.Post) error
	// Delete removes the post together with its comments and likes.
	Delete(ctx context.Context, id int64) error
	// IncrementViews atomically adds one to the view counter of slug.
	IncrementViews(ctx context.Context, slug string) error
	// ToggleLike flips userID's membership in the like set and reports the new state.
	ToggleLike(ctx context.Context, postID, userID int64) (bool, error)
}

// CommentRepository manages comments attached to posts.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByPost(ctx context.Context, postID int64) ([]domain.Comment, error)
	Delete(ctx context.Context, id int64) error
}
