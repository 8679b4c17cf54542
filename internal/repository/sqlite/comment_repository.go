package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"blog-api/internal/domain"
	"blog-api/internal/repository"
)

const selectComments = `
SELECT c.id, c.post_id, c.author_id, u.username, u.avatar_key, c.body, c.created_at
FROM comments c
JOIN users u ON u.id = c.author_id`

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) repository.CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) (int64, error) {
	comment.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO comments (post_id, author_id, body, created_at)
VALUES (?, ?, ?, ?)`,
		comment.PostID,
		comment.AuthorID,
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return 0, domain.NotFound("post")
		}
		return 0, storageErr("insert comment", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("comment last insert id", err)
	}
	comment.ID = id
	return id, nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	row := r.db.QueryRowContext(ctx, selectComments+`
WHERE c.id = ?`,
		id,
	)
	return scanComment(row)
}

// ListByPost returns the comments of a post oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, selectComments+`
WHERE c.post_id = ?
ORDER BY c.created_at ASC, c.id ASC`, postID)
	if err != nil {
		return nil, storageErr("query comments", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate comments", err)
	}
	return comments, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return storageErr("delete comment", err)
	}
	return expectAffected(res, "comment")
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var comment domain.Comment
	if err := row.Scan(
		&comment.ID,
		&comment.PostID,
		&comment.AuthorID,
		&comment.Author.Username,
		&comment.Author.AvatarKey,
		&comment.Body,
		&comment.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("comment")
		}
		return nil, storageErr("scan comment", err)
	}
	comment.Author.ID = comment.AuthorID
	return &comment, nil
}
