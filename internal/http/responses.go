package http

import (
	"context"
	"time"

	"blog-api/internal/auth"
	"blog-api/internal/content"
	"blog-api/internal/domain"
	"blog-api/internal/service"
	"blog-api/internal/storage"
)

type AuthorResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type PostResponse struct {
	ID               int64          `json:"id"`
	Slug             string         `json:"slug"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	BodyHTML         string         `json:"body_html"`
	Author           AuthorResponse `json:"author"`
	FeaturedImageURL string         `json:"featured_image_url,omitempty"`
	Views            int64          `json:"views"`
	Likes            []int64        `json:"likes"`
	LikeCount        int            `json:"like_count"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

type PostPageResponse struct {
	Posts []PostResponse `json:"posts"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int64          `json:"total"`
	Pages int            `json:"pages"`
}

type LikeResponse struct {
	Liked     bool         `json:"liked"`
	LikeCount int          `json:"like_count"`
	Likes     []int64      `json:"likes"`
	Post      PostResponse `json:"post"`
}

type CommentResponse struct {
	ID        int64          `json:"id"`
	PostID    int64          `json:"post_id"`
	Body      string         `json:"body"`
	Author    AuthorResponse `json:"author"`
	CreatedAt string         `json:"created_at"`
}

type UserResponse struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type SessionResponse struct {
	User UserResponse `json:"user"`
	TokenResponse
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

// mediaURL resolves a stored key to a link; failures leave the link empty.
func (h *Handler) mediaURL(ctx context.Context, key string) string {
	if key == "" || h.media == nil {
		return ""
	}
	url, err := h.media.URL(ctx, key)
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("resolve media url")
		return ""
	}
	return url
}

func (h *Handler) authorToResponse(ctx context.Context, author domain.UserSummary) AuthorResponse {
	return AuthorResponse{
		ID:        author.ID,
		Username:  author.Username,
		AvatarURL: h.mediaURL(ctx, author.AvatarKey),
	}
}

func (h *Handler) postToResponse(ctx context.Context, post domain.Post) PostResponse {
	likes := post.Likes
	if likes == nil {
		likes = []int64{}
	}
	return PostResponse{
		ID:               post.ID,
		Slug:             post.Slug,
		Title:            post.Title,
		Body:             post.Body,
		BodyHTML:         content.RenderMarkdown(post.Body),
		Author:           h.authorToResponse(ctx, post.Author),
		FeaturedImageURL: h.mediaURL(ctx, post.FeaturedImageKey),
		Views:            post.Views,
		Likes:            likes,
		LikeCount:        len(likes),
		CreatedAt:        post.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        post.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) pageToResponse(ctx context.Context, page *domain.PostPage) PostPageResponse {
	resp := PostPageResponse{
		Posts: make([]PostResponse, len(page.Posts)),
		Page:  page.Page,
		Limit: page.Limit,
		Total: page.Total,
		Pages: page.Pages,
	}
	for i := range page.Posts {
		resp.Posts[i] = h.postToResponse(ctx, page.Posts[i])
	}
	return resp
}

func (h *Handler) commentToResponse(ctx context.Context, comment domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		PostID:    comment.PostID,
		Body:      comment.Body,
		Author:    h.authorToResponse(ctx, comment.Author),
		CreatedAt: comment.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) userToResponse(ctx context.Context, user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		AvatarURL: h.mediaURL(ctx, user.AvatarKey),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func tokensToResponse(tokens auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
	}
}

func (h *Handler) sessionToResponse(ctx context.Context, session *service.Session) SessionResponse {
	return SessionResponse{
		User:          h.userToResponse(ctx, session.User),
		TokenResponse: tokensToResponse(session.Tokens),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
