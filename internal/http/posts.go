package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"blog-api/internal/domain"
	"blog-api/internal/service"
)

const featuredImageField = "featuredImage"

// postRequest is accepted as JSON or multipart form; body may also be sent as content.
type postRequest struct {
	Title       *string `json:"title" form:"title"`
	Body        *string `json:"body" form:"body"`
	Content     *string `json:"content" form:"content"`
	RemoveImage bool    `json:"remove_image" form:"remove_image"`
}

func (r postRequest) body() *string {
	if r.Body != nil {
		return r.Body
	}
	return r.Content
}

type listPostsQuery struct {
	Page   int   `form:"page" binding:"omitempty,min=1"`
	Limit  int   `form:"limit" binding:"omitempty,min=1"`
	Author int64 `form:"author" binding:"omitempty,min=1"`
}

func (h *Handler) listPosts(c *gin.Context) {
	var q listPostsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	page, err := h.posts.List(c.Request.Context(), domain.PostQuery{
		Page:     q.Page,
		Limit:    q.Limit,
		AuthorID: q.Author,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.pageToResponse(c.Request.Context(), page))
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postToResponse(c.Request.Context(), *post))
}

func (h *Handler) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	image, closeImage, err := formUpload(c, featuredImageField)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeImage()

	in := service.CreatePostInput{Image: image}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if body := req.body(); body != nil {
		in.Body = *body
	}

	post, err := h.posts.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.postToResponse(c.Request.Context(), *post))
}

func (h *Handler) updatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, bindError(err))
		return
	}

	image, closeImage, err := formUpload(c, featuredImageField)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeImage()

	post, err := h.posts.Update(c.Request.Context(), principal(c), c.Param("slug"), service.UpdatePostInput{
		Title:       req.Title,
		Body:        req.body(),
		Image:       image,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.postToResponse(c.Request.Context(), *post))
}

func (h *Handler) deletePost(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.posts.Delete(c.Request.Context(), principal(c), slug); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": slug})
}

func (h *Handler) toggleLike(c *gin.Context) {
	post, liked, err := h.posts.ToggleLike(c.Request.Context(), principal(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := h.postToResponse(c.Request.Context(), *post)
	c.JSON(http.StatusOK, LikeResponse{
		Liked:     liked,
		LikeCount: resp.LikeCount,
		Likes:     resp.Likes,
		Post:      resp,
	})
}

// formUpload opens the named multipart file when the request carries one.
// The returned close func is always safe to call.
func formUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	noop := func() {}
	if c.ContentType() != "multipart/form-data" {
		return nil, noop, nil
	}

	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, domain.NewValidationError(field, "could not be read")
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, domain.NewValidationError(field, "could not be read")
	}
	return &service.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	}, func() { file.Close() }, nil
}
