// Package minio implements the dams blob store on MinIO using minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/dams"
)

// Config options for the MinIO backend.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// PublicURL overrides the location prefix handed to clients.
	PublicURL string `mapstructure:"public_url"`
	// CreateBucket creates the bucket on startup when it is missing.
	CreateBucket bool `mapstructure:"create_bucket"`
}

// Store is a MinIO blob store.
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New connects to MinIO and returns a Store for cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new minio store: bucket name is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio store: %w", err)
	}

	if cfg.CreateBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("new minio store: check bucket: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("new minio store: create bucket: %w", err)
			}
		}
	}

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		base = fmt.Sprintf("%s/%s", client.EndpointURL(), cfg.Bucket)
	}

	return &Store{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

// Location returns the public reference for key.
func (s *Store) Location(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Put uploads content under key.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) (string, error) {
	if !dams.IsValidStorageKey(key) {
		return "", fmt.Errorf("put %q: %w: invalid storage key", key, dams.ErrInvalidInput)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.Location(key), nil
}

// Delete removes the object under key. MinIO reports success for missing
// keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return dams.ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	return true, nil
}

// List returns every object in the bucket.
func (s *Store) List(ctx context.Context) ([]dams.BlobInfo, error) {
	blobs := []dams.BlobInfo{}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}

		blobs = append(blobs, dams.BlobInfo{
			Key:        obj.Key,
			Size:       obj.Size,
			ModifiedAt: obj.LastModified,
		})
	}

	return blobs, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}
