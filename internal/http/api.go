package http

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/service"
)

// TokenVerifier checks an access token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Options collects the collaborators of a Handler.
type Options struct {
	Posts      service.PostService
	Comments   service.CommentService
	Users      service.UserService
	Media      service.MediaService
	Tokens     TokenVerifier
	Authorizer service.Authorizer
	Logger     *logrus.Logger
	// RateLimit caps sign-up, login and refresh requests per client IP per minute; zero disables it.
	RateLimit int
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	posts     service.PostService
	comments  service.CommentService
	users     service.UserService
	media     service.MediaService
	tokens    TokenVerifier
	authz     service.Authorizer
	logger    *logrus.Logger
	rateLimit int
}

func NewHandler(opts Options) *Handler {
	registerValidators()

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		posts:     opts.Posts,
		comments:  opts.Comments,
		users:     opts.Users,
		media:     opts.Media,
		tokens:    opts.Tokens,
		authz:     opts.Authorizer,
		logger:    logger,
		rateLimit: opts.RateLimit,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestIDMiddleware(), h.accessLog())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		limited := rateLimitMiddleware(h.rateLimit)
		users := api.Group("/users")
		{
			users.POST("/register", limited, h.register)
			users.POST("/login", limited, h.login)
			users.POST("/refresh", limited, h.refresh)
			users.GET("/me", h.authenticate(), h.me)
			users.PATCH("/profile/:id", h.authenticate(), h.updateProfile)
			users.PATCH("/:id/role", h.authenticate(domain.RoleAdmin), h.changeRole)
		}

		api.GET("/media", h.authenticate(domain.RoleAdmin), h.listMedia)

		posts := api.Group("/posts")
		{
			posts.GET("", h.listPosts)
			posts.GET("/:slug", h.getPost)
			posts.POST("", h.authenticate(service.PostWriters...), h.createPost)
			posts.PATCH("/:slug", h.authenticate(), h.updatePost)
			posts.DELETE("/:slug", h.authenticate(), h.deletePost)
			posts.POST("/:slug/like", h.authenticate(), h.toggleLike)
			posts.GET("/:slug/comments", h.authenticate(), h.listComments)
			posts.POST("/:slug/comments", h.authenticate(), h.createComment)
			posts.DELETE("/:slug/comments/:id", h.authenticate(), h.deleteComment)
		}
	}
}

var validatorsOnce sync.Once

// registerValidators adds the custom binding tags used by request structs.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.Role(fl.Field().String()).Valid()
		})
	})
}

// principal returns the subject placed on the request by authenticate.
func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c.Request.Context())
	return p
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
