// Package file serves source images from S3-compatible object storage.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/image-proxy/internal/fetcher"
)

// Scheme is the URL scheme served by Storage.
const Scheme = "s3"

// ErrInvalidObjectURL is returned for URLs that do not name a bucket and key.
var ErrInvalidObjectURL = errors.New("invalid object url")

// Storage reads source images from MinIO. Sources are addressed as
// s3://bucket/key.
type Storage struct {
	client   *minio.Client
	maxBytes int64
}

// NewStorage creates a Storage connected to the MinIO server at endpoint.
// Objects larger than maxBytes are rejected.
func NewStorage(endpoint, accessKey, secretKey string, useSSL bool, maxBytes int64) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	return &Storage{
		client:   client,
		maxBytes: maxBytes,
	}, nil
}

// Ping checks that the given buckets exist.
func (s *Storage) Ping(ctx context.Context, buckets ...string) error {
	for _, b := range buckets {
		exists, err := s.client.BucketExists(ctx, b)
		if err != nil {
			return fmt.Errorf("failed to check if bucket %s exists: %w", b, err)
		}
		if !exists {
			return fmt.Errorf("bucket %s does not exist", b)
		}
	}
	return nil
}

// Fetch implements fetcher.Fetcher for s3:// URLs.
func (s *Storage) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := ParseObjectURL(rawURL)
	if err != nil {
		return nil, err
	}

	obj, err := s.Load(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	body, err := fetcher.ReadLimited(obj, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	if err := fetcher.CheckImage(body); err != nil {
		return nil, err
	}

	return body, nil
}

// Load retrieves the object and returns a reader over its content.
// A missing object is reported here rather than on the first read.
func (s *Storage) Load(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load object: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}

	if s.maxBytes > 0 && info.Size > s.maxBytes {
		obj.Close()
		return nil, fmt.Errorf("%w: %d bytes", fetcher.ErrTooLarge, info.Size)
	}

	return obj, nil
}

// ParseObjectURL splits s3://bucket/key into its bucket and key.
func ParseObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidObjectURL, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return "", "", fmt.Errorf("%w: scheme %q", ErrInvalidObjectURL, u.Scheme)
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidObjectURL, rawURL)
	}

	return bucket, key, nil
}
