package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content" form:"content"`
	Body    string `json:"body" form:"body"`
}

func (h *Handler) listComments(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]CommentResponse, len(comments))
	for i := range comments {
		resp[i] = h.commentToResponse(c.Request.Context(), comments[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	body := req.Content
	if body == "" {
		body = req.Body
	}

	comment, err := h.comments.Create(c.Request.Context(), principal(c), c.Param("slug"), body)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.commentToResponse(c.Request.Context(), *comment))
}

func (h *Handler) deleteComment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.comments.Delete(c.Request.Context(), principal(c), c.Param("slug"), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
