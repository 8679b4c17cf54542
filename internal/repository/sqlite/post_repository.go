package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

const selectPosts = `
SELECT p.id, p.slug, p.title, p.body, p.author_id, u.username, u.avatar_key, p.featured_image_key, p.views, p.created_at, p.updated_at
FROM posts p
JOIN users u ON u.id = p.author_id`

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (int64, error) {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Views = 0
	post.Likes = []int64{}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO posts (slug, title, body, author_id, featured_image_key, views, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		post.Slug,
		post.Title,
		post.Body,
		post.AuthorID,
		post.FeaturedImageKey,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("slug %q %w", post.Slug, domain.ErrConflict)
		}
		return 0, storageErr("insert post", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("post last insert id", err)
	}
	post.ID = id
	return id, nil
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, selectPosts+`
WHERE p.slug = ?`,
		slug,
	)
	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}

	likes, err := r.loadLikes(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Likes = likes[post.ID]
	if post.Likes == nil {
		post.Likes = []int64{}
	}
	return post, nil
}

func (r *PostRepository) List(ctx context.Context, query domain.PostQuery) ([]domain.Post, int64, error) {
	query = query.Normalize()

	var (
		where string
		args  []any
	)
	if query.AuthorID > 0 {
		where = `
WHERE p.author_id = ?`
		args = append(args, query.AuthorID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count posts", err)
	}

	rows, err := r.db.QueryContext(ctx, selectPosts+where+`
ORDER BY p.created_at DESC, p.id DESC
LIMIT ? OFFSET ?`,
		append(args, query.Limit, query.Offset())...,
	)
	if err != nil {
		return nil, 0, storageErr("query posts", err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("iterate posts", err)
	}

	likes, err := r.loadLikes(ctx, lo.Map(posts, func(p domain.Post, _ int) int64 { return p.ID })...)
	if err != nil {
		return nil, 0, err
	}
	for i := range posts {
		posts[i].Likes = likes[posts[i].ID]
		if posts[i].Likes == nil {
			posts[i].Likes = []int64{}
		}
	}

	return posts, total, nil
}

func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	post.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE posts
SET title=?, body=?, featured_image_key=?, updated_at=?
WHERE id=?`,
		post.Title,
		post.Body,
		post.FeaturedImageKey,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return storageErr("update post", err)
	}
	return expectAffected(res, "post")
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id=?`, id); err != nil {
		return storageErr("delete post likes", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id=?`, id); err != nil {
		return storageErr("delete post comments", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
	if err != nil {
		return storageErr("delete post", err)
	}
	if err := expectAffected(res, "post"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit post delete", err)
	}
	return nil
}

func (r *PostRepository) IncrementViews(ctx context.Context, slug string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE slug = ?`, slug)
	if err != nil {
		return storageErr("increment post views", err)
	}
	return expectAffected(res, "post")
}

func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id=? AND user_id=?`, postID, userID)
	if err != nil {
		return false, storageErr("remove like", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("remove like rows affected", err)
	}

	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO post_likes (post_id, user_id, created_at)
VALUES (?, ?, ?)`,
			postID,
			userID,
			time.Now().UTC(),
		); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
				return false, domain.NotFound("post")
			}
			return false, storageErr("add like", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("commit like toggle", err)
	}
	return liked, nil
}

func (r *PostRepository) loadLikes(ctx context.Context, postIDs ...int64) (map[int64][]int64, error) {
	likes := make(map[int64][]int64, len(postIDs))
	if len(postIDs) == 0 {
		return likes, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(postIDs)), ",")
	args := lo.Map(postIDs, func(id int64, _ int) any { return id })

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT post_id, user_id
FROM post_likes
WHERE post_id IN (%s)
ORDER BY created_at ASC, user_id ASC`, placeholders), args...)
	if err != nil {
		return nil, storageErr("query post likes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID int64
		if err := rows.Scan(&postID, &userID); err != nil {
			return nil, storageErr("scan post like", err)
		}
		likes[postID] = append(likes[postID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate post likes", err)
	}
	return likes, nil
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(
		&post.ID,
		&post.Slug,
		&post.Title,
		&post.Body,
		&post.AuthorID,
		&post.Author.Username,
		&post.Author.AvatarKey,
		&post.FeaturedImageKey,
		&post.Views,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("post")
		}
		return nil, storageErr("scan post", err)
	}
	post.Author.ID = post.AuthorID
	return &post, nil
}
