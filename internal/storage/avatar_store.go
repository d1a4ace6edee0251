package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"
)

const defaultMaxAvatarBytes = 2 << 20

var (
	// ErrUnsupportedImage is returned for uploads that are not jpeg, png, gif or webp.
	ErrUnsupportedImage = errors.New("storage: unsupported image type")
	// ErrImageTooLarge is returned when an upload exceeds the configured size limit.
	ErrImageTooLarge = errors.New("storage: image too large")
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Config describes the S3 compatible bucket avatars are written to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
	PublicURL string
	MaxBytes  int64
}

type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// AvatarStore keeps profile pictures in object storage.
type AvatarStore struct {
	client    objectClient
	bucket    string
	region    string
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

// NewAvatarStore connects to the bucket described by cfg.
func NewAvatarStore(cfg Config) (*AvatarStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	useSSL := cfg.UseSSL
	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("storage: parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return newAvatarStore(client, cfg.Bucket, cfg.Region, publicURL, cfg.MaxBytes), nil
}

func newAvatarStore(client objectClient, bucket, region, publicURL string, maxBytes int64) *AvatarStore {
	if bucket == "" {
		bucket = "avatars"
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxAvatarBytes
	}
	return &AvatarStore{
		client:    client,
		bucket:    bucket,
		region:    region,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// EnsureBucket creates the avatar bucket when it does not exist yet.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores an avatar for userID and returns its public URL. The content
// type is sniffed from the data, not taken from the client.
func (s *AvatarStore) Upload(ctx context.Context, userID string, r io.Reader) (string, error) {
	if userID == "" {
		return "", errors.New("storage: user id is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}

	key := fmt.Sprintf("%s/%s.%s", userID, ulid.MustNew(ulid.Timestamp(s.now()), rand.Reader), ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Remove deletes the object behind a URL previously returned by Upload.
// URLs that do not point into the bucket are ignored.
func (s *AvatarStore) Remove(ctx context.Context, avatarURL string) error {
	key, ok := s.keyFromURL(avatarURL)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

// URL returns the public address of key.
func (s *AvatarStore) URL(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + key
}

func (s *AvatarStore) keyFromURL(avatarURL string) (string, bool) {
	prefix := s.publicURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(avatarURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(avatarURL, prefix)
	return key, key != ""
}
