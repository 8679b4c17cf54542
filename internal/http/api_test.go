package http

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-api/internal/auth"
	"blog-api/internal/domain"
	"blog-api/internal/repository/sqlite"
	"blog-api/internal/service"
)

const (
	testSecret = "test-secret"
	testIssuer = "blog-api"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	db     *sql.DB
}

type testUser struct {
	ID    int64
	Token string
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)
	comments := sqlite.NewCommentRepository(db)
	tokens := auth.NewTokenManager(testSecret, testIssuer, 15*time.Minute, time.Hour)
	media := service.NewMediaService(nil, service.MediaConfig{})

	handler := NewHandler(Options{
		Posts:    service.NewPostService(posts, media, logger),
		Comments: service.NewCommentService(posts, comments),
		Users: service.NewUserService(users, tokens, media, service.UserConfig{
			AdminEmails: []string{"carol@example.com"},
		}, logger),
		Media:      media,
		Tokens:     tokens,
		Authorizer: service.NewAuthorizer(users),
		Logger:     logger,
		RateLimit:  rateLimit,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	return &testServer{t: t, router: router, db: db}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(username, role string) testUser {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/users/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var session SessionResponse
	decode(s.t, rec, &session)
	return testUser{ID: session.User.ID, Token: session.AccessToken}
}

func (s *testServer) createPost(user testUser, title string) PostResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/posts", user.Token, gin.H{"title": title, "body": "# Hi\n\nfirst post"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var post PostResponse
	decode(s.t, rec, &post)
	return post
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestPostLifecycleScenario(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	bob := s.register("bob", "reader")
	carol := s.register("carol", "")

	post := s.createPost(alice, "Hello World")
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, int64(0), post.Views)
	assert.Equal(t, alice.ID, post.Author.ID)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Contains(t, post.BodyHTML, "<h1")

	rec := s.do(http.MethodGet, "/api/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &post)
	assert.Equal(t, int64(1), post.Views)

	rec = s.do(http.MethodDelete, "/api/posts/hello-world", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/api/posts/hello-world", carol.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/posts/hello-world", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePostRoles(t *testing.T) {
	s := newTestServer(t, 0)
	bob := s.register("bob", "reader")
	carol := s.register("carol", "")

	rec := s.do(http.MethodPost, "/api/posts", bob.Token, gin.H{"title": "Nope", "body": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	post := s.createPost(carol, "Admin Post")
	assert.Equal(t, "admin-post", post.Slug)

	second := s.createPost(carol, "Admin Post")
	assert.Equal(t, "admin-post-2", second.Slug)

	rec = s.do(http.MethodPost, "/api/posts", carol.Token, gin.H{"title": "", "body": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleLikeRoundTrip(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	s.createPost(alice, "Hello World")

	rec := s.do(http.MethodPost, "/api/posts/hello-world/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var like LikeResponse
	decode(t, rec, &like)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.LikeCount)
	assert.Equal(t, []int64{alice.ID}, like.Likes)

	rec = s.do(http.MethodPost, "/api/posts/hello-world/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	like = LikeResponse{}
	decode(t, rec, &like)
	assert.False(t, like.Liked)
	assert.Equal(t, 0, like.LikeCount)
	assert.Empty(t, like.Likes)
}

func TestUpdatePostOwnership(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	dave := s.register("dave", "author")
	carol := s.register("carol", "")
	s.createPost(alice, "Hello World")

	rec := s.do(http.MethodPatch, "/api/posts/hello-world", dave.Token, gin.H{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/api/posts/hello-world", carol.Token, gin.H{"content": "moderated"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var post PostResponse
	decode(t, rec, &post)
	assert.Equal(t, "Hello World", post.Title)
	assert.Equal(t, "moderated", post.Body)

	rec = s.do(http.MethodPatch, "/api/posts/hello-world", alice.Token, gin.H{"title": "Hello Again"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &post)
	assert.Equal(t, "Hello Again", post.Title)
	assert.Equal(t, "hello-world", post.Slug)
}

func TestAuthenticationFailures(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	s.createPost(alice, "Hello World")

	expired, err := auth.NewTokenManager(testSecret, testIssuer, -time.Minute, time.Hour).Issue(alice.ID)
	require.NoError(t, err)
	forged, err := auth.NewTokenManager("other-secret", testIssuer, time.Minute, time.Hour).Issue(alice.ID)
	require.NoError(t, err)
	valid, err := auth.NewTokenManager(testSecret, testIssuer, time.Minute, time.Hour).Issue(alice.ID)
	require.NoError(t, err)
	ghost, err := auth.NewTokenManager(testSecret, testIssuer, time.Minute, time.Hour).Issue(9999)
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		message string
	}{
		{name: "no token", method: http.MethodPost, path: "/api/posts", message: "authentication required"},
		{name: "garbage", method: http.MethodPost, path: "/api/posts", token: "garbage", message: "invalid token"},
		{name: "expired", method: http.MethodPost, path: "/api/posts", token: expired.AccessToken, message: "token expired"},
		{name: "forged", method: http.MethodPost, path: "/api/posts", token: forged.AccessToken, message: "invalid token"},
		{name: "refresh as access", method: http.MethodPost, path: "/api/posts", token: valid.RefreshToken, message: "invalid token"},
		{name: "unknown subject", method: http.MethodPost, path: "/api/posts", token: ghost.AccessToken, message: "user not found"},
		{name: "comments need auth", method: http.MethodGet, path: "/api/posts/hello-world/comments", message: "authentication required"},
		{name: "like needs auth", method: http.MethodPost, path: "/api/posts/hello-world/like", message: "authentication required"},
		{name: "me needs auth", method: http.MethodGet, path: "/api/users/me", message: "authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, gin.H{"title": "x", "body": "y"})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
		})
	}

	rec := s.do(http.MethodGet, "/api/posts/hello-world/comments", valid.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestComments(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	bob := s.register("bob", "reader")
	dave := s.register("dave", "reader")
	carol := s.register("carol", "")
	s.createPost(alice, "Hello World")

	rec := s.do(http.MethodPost, "/api/posts/hello-world/comments", bob.Token, gin.H{"content": "first!"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first CommentResponse
	decode(t, rec, &first)
	assert.Equal(t, "first!", first.Body)
	assert.Equal(t, "bob", first.Author.Username)

	rec = s.do(http.MethodPost, "/api/posts/hello-world/comments", dave.Token, gin.H{"content": "second"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var second CommentResponse
	decode(t, rec, &second)

	rec = s.do(http.MethodPost, "/api/posts/hello-world/comments", dave.Token, gin.H{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/posts/missing/comments", dave.Token, gin.H{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/posts/hello-world/comments", dave.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []CommentResponse
	decode(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	path := fmt.Sprintf("/api/posts/hello-world/comments/%d", first.ID)
	rec = s.do(http.MethodDelete, path, dave.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, path, bob.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, path, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/posts/hello-world/comments/%d", second.ID), carol.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/posts/hello-world/comments/abc", carol.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register("alice", "author")
	carol := s.register("carol", "")
	for i := 0; i < 3; i++ {
		s.createPost(alice, fmt.Sprintf("Alice %d", i))
	}
	s.createPost(carol, "Carol")

	rec := s.do(http.MethodGet, "/api/posts?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page PostPageResponse
	decode(t, rec, &page)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "carol", page.Posts[0].Slug)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/posts?author=%d&page=2&limit=2", alice.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = PostPageResponse{}
	decode(t, rec, &page)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "alice-0", page.Posts[0].Slug)

	rec = s.do(http.MethodGet, "/api/posts?page=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/posts?page=9223372036854775807", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = PostPageResponse{}
	decode(t, rec, &page)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, domain.MaxPage, page.Page)
	assert.Empty(t, page.Posts)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	bob := s.register("bob", "")
	carol := s.register("carol", "")

	rec := s.do(http.MethodPost, "/api/users/register", "", gin.H{
		"username": "bob", "email": "other@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/users/register", "", gin.H{
		"username": "mallory", "email": "mallory@example.com", "password": "password123", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/users/register", "", gin.H{
		"username": "longpass", "email": "longpass@example.com", "password": strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "password")

	long := strings.Repeat("p", 80)
	rec = s.do(http.MethodPatch, fmt.Sprintf("/api/users/profile/%d", bob.ID), bob.Token, gin.H{"password": long})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/users/login", "", gin.H{"login": "bob", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", errorMessage(t, rec))

	rec = s.do(http.MethodPost, "/api/users/login", "", gin.H{"login": "bob@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var session SessionResponse
	decode(t, rec, &session)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, int64(15*60), session.ExpiresIn)
	assert.Equal(t, "reader", string(session.User.Role))

	rec = s.do(http.MethodPost, "/api/users/refresh", "", gin.H{"refresh_token": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/users/refresh", "", gin.H{"refresh_token": session.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/users/me", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserResponse
	decode(t, rec, &me)
	assert.Equal(t, "bob@example.com", me.Email)

	rolePath := fmt.Sprintf("/api/users/%d/role", bob.ID)
	rec = s.do(http.MethodPatch, rolePath, bob.Token, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, rolePath, carol.Token, gin.H{"role": "editor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, rolePath, carol.Token, gin.H{"role": "author"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the promotion applies to the token bob already holds
	post := s.createPost(bob, "Promoted")
	assert.Equal(t, "promoted", post.Slug)

	profilePath := fmt.Sprintf("/api/users/profile/%d", bob.ID)
	rec = s.do(http.MethodPatch, profilePath, bob.Token, gin.H{"username": "bobby"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &me)
	assert.Equal(t, "bobby", me.Username)
	assert.Equal(t, "author", string(me.Role))

	rec = s.do(http.MethodPatch, fmt.Sprintf("/api/users/profile/%d", carol.ID), bob.Token, gin.H{"username": "pwned"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMediaRequiresAdminAndStorage(t *testing.T) {
	s := newTestServer(t, 0)
	bob := s.register("bob", "")
	carol := s.register("carol", "")

	rec := s.do(http.MethodGet, "/api/media", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/media", carol.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/users/login", "", gin.H{"login": "nobody", "password": "password123"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(http.MethodPost, "/api/users/login", "", gin.H{"login": "nobody", "password": "password123"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := newTestServer(t, 0)
	require.NoError(t, s.db.Close())

	rec := s.do(http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorMessage(t, rec))
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(http.MethodGet, "/api/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
