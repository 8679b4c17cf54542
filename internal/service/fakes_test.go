package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"blog-api/internal/domain"
	"blog-api/internal/storage"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]domain.User)}
}

func (r *fakeUserRepo) add(username string, role domain.Role) int64 {
	id, _ := r.Create(context.Background(), &domain.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	})
	return id
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, domain.ErrConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.Role == "" {
		user.Role = domain.RoleReader
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	u.Role = ""
	u.PasswordHash = ""
	return &u, nil
}

func (r *fakeUserRepo) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == login || u.Email == strings.ToLower(login) {
			u.Role = ""
			return &u, nil
		}
	}
	return nil, domain.NotFound("user")
}

func (r *fakeUserRepo) GetRole(_ context.Context, id int64) (domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return "", domain.NotFound("user")
	}
	return u.Role, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok {
		return domain.NotFound("user")
	}
	u.Username = user.Username
	u.Email = user.Email
	u.AvatarKey = user.AvatarKey
	if user.PasswordHash != "" {
		u.PasswordHash = user.PasswordHash
	}
	r.users[user.ID] = u
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.NotFound("user")
	}
	u.Role = role
	r.users[id] = u
	return nil
}

type fakePostRepo struct {
	mu       sync.Mutex
	nextID   int64
	posts    map[string]*domain.Post
	creates  int
	failWith error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*domain.Post)}
}

func (r *fakePostRepo) Create(_ context.Context, post *domain.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.failWith != nil {
		return 0, r.failWith
	}
	if _, taken := r.posts[post.Slug]; taken {
		return 0, domain.ErrConflict
	}
	r.nextID++
	stored := *post
	stored.ID = r.nextID
	stored.Author = domain.UserSummary{ID: post.AuthorID}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.posts[post.Slug] = &stored
	return stored.ID, nil
}

func (r *fakePostRepo) GetBySlug(_ context.Context, slug string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[slug]
	if !ok {
		return nil, domain.NotFound("post")
	}
	out := *p
	out.Likes = append([]int64(nil), p.Likes...)
	return &out, nil
}

func (r *fakePostRepo) byID(id int64) *domain.Post {
	for _, p := range r.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *fakePostRepo) List(_ context.Context, q domain.PostQuery) ([]domain.Post, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Post
	for _, p := range r.posts {
		if q.AuthorID != 0 && p.AuthorID != q.AuthorID {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakePostRepo) Update(_ context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID(post.ID)
	if p == nil {
		return domain.NotFound("post")
	}
	p.Title = post.Title
	p.Body = post.Body
	p.FeaturedImageKey = post.FeaturedImageKey
	return nil
}

func (r *fakePostRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID(id)
	if p == nil {
		return domain.NotFound("post")
	}
	delete(r.posts, p.Slug)
	return nil
}

func (r *fakePostRepo) IncrementViews(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[slug]
	if !ok {
		return domain.NotFound("post")
	}
	p.Views++
	return nil
}

func (r *fakePostRepo) ToggleLike(_ context.Context, postID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID(postID)
	if p == nil {
		return false, domain.NotFound("post")
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]domain.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[int64]domain.Comment)}
}

func (r *fakeCommentRepo) Create(_ context.Context, c *domain.Comment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *c
	stored.ID = r.nextID
	stored.Author = domain.UserSummary{ID: c.AuthorID}
	stored.CreatedAt = time.Now()
	r.comments[stored.ID] = stored
	return stored.ID, nil
}

func (r *fakeCommentRepo) GetByID(_ context.Context, id int64) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, domain.NotFound("comment")
	}
	return &c, nil
}

func (r *fakeCommentRepo) ListByPost(_ context.Context, postID int64) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return domain.NotFound("comment")
	}
	delete(r.comments, id)
	return nil
}

type storedObject struct {
	body        []byte
	contentType string
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	deleted []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]storedObject)}
}

func (s *fakeStore) PutObject(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = storedObject{body: data, contentType: contentType}
	return nil
}

func (s *fakeStore) DeleteObject(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) ListObjects(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ObjectInfo
	for k, o := range s.objects {
		key := strings.TrimPrefix(k, bucket+"/")
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(o.body))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + bucket + "/" + key + "?sig=1", nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngUpload() *Upload {
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	return &Upload{Filename: "image.png", Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
