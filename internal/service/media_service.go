package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"blog-api/internal/domain"
	"blog-api/internal/storage"
)

// MediaKind groups stored objects by what they illustrate.
type MediaKind string

const (
	MediaPost   MediaKind = "posts"
	MediaAvatar MediaKind = "avatars"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload is an image handed over by the transport layer.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// MediaConfig configures where images go and how they are addressed.
type MediaConfig struct {
	Bucket        string
	KeyPrefix     string
	PublicBaseURL string
	URLExpiry     time.Duration
	MaxBytes      int64
}

// MediaService stores featured images and avatars.
type MediaService interface {
	Enabled() bool
	Upload(ctx context.Context, kind MediaKind, upload Upload) (string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

type mediaService struct {
	store storage.Service
	cfg   MediaConfig
}

// NewMediaService returns a MediaService; a nil store or empty bucket disables uploads.
func NewMediaService(store storage.Service, cfg MediaConfig) MediaService {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &mediaService{store: store, cfg: cfg}
}

func (s *mediaService) Enabled() bool {
	return s.store != nil && s.cfg.Bucket != ""
}

func (s *mediaService) Upload(ctx context.Context, kind MediaKind, upload Upload) (string, error) {
	if !s.Enabled() {
		return "", domain.NewValidationError("image", "uploads are not configured")
	}
	if upload.Body == nil || upload.Size == 0 {
		return "", domain.NewValidationError("image", "is empty")
	}
	if s.cfg.MaxBytes > 0 && upload.Size > s.cfg.MaxBytes {
		return "", domain.NewValidationError("image", fmt.Sprintf("exceeds %d bytes", s.cfg.MaxBytes))
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", domain.NewValidationError("image", "must be a jpeg, png, gif or webp file")
	}

	key := path.Join(s.cfg.KeyPrefix, string(kind), uuid.NewString()+ext)
	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	if err := s.store.PutObject(ctx, s.cfg.Bucket, key, body, contentType); err != nil {
		return "", &domain.StorageError{Op: "store image", Err: err}
	}
	return key, nil
}

func (s *mediaService) Delete(ctx context.Context, key string) error {
	if key == "" || !s.Enabled() {
		return nil
	}
	return s.store.DeleteObject(ctx, s.cfg.Bucket, key)
}

func (s *mediaService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + "/" + key, nil
	}
	if !s.Enabled() {
		return "", nil
	}
	return s.store.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLExpiry)
}

func (s *mediaService) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if !s.Enabled() {
		return nil, domain.NewValidationError("storage", "is not configured")
	}
	if strings.Contains(prefix, "..") {
		return nil, domain.NewValidationError("prefix", "must not contain ..")
	}
	return s.store.ListObjects(ctx, s.cfg.Bucket, path.Join(s.cfg.KeyPrefix, prefix))
}
