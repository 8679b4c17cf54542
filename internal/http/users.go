package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"blog-api/internal/domain"
	"blog-api/internal/service"
)

const avatarField = "avatar"

type registerRequest struct {
	Username   string `json:"username" form:"username" binding:"required"`
	Email      string `json:"email" form:"email" binding:"required"`
	Password   string `json:"password" form:"password" binding:"required"`
	Role       string `json:"role" form:"role"`
	InviteCode string `json:"invite_code" form:"invite_code"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type profileRequest struct {
	Username *string `json:"username" form:"username"`
	Email    *string `json:"email" form:"email"`
	Password *string `json:"password" form:"password"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required,role"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	avatar, closeAvatar, err := formUpload(c, avatarField)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeAvatar()

	session, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Role:       domain.Role(req.Role),
		InviteCode: req.InviteCode,
		Avatar:     avatar,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.sessionToResponse(c.Request.Context(), session))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	session, err := h.users.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.sessionToResponse(c.Request.Context(), session))
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	session, err := h.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.sessionToResponse(c.Request.Context(), session))
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.userToResponse(c.Request.Context(), user))
}

func (h *Handler) updateProfile(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req profileRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, bindError(err))
		return
	}

	avatar, closeAvatar, err := formUpload(c, avatarField)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeAvatar()

	user, err := h.users.UpdateProfile(c.Request.Context(), principal(c), id, service.ProfileInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   avatar,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.userToResponse(c.Request.Context(), user))
}

func (h *Handler) changeRole(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), principal(c), id, domain.Role(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.userToResponse(c.Request.Context(), user))
}

func (h *Handler) listMedia(c *gin.Context) {
	objects, err := h.media.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}
