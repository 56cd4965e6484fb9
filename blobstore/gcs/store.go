// Package gcs implements the dams blob store on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sagarc03/dams"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Config options for the GCS backend.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	// CredentialsFile is a service account JSON file. Application default
	// credentials are used when empty.
	CredentialsFile string `mapstructure:"credentials_file"`
	// Endpoint points the client at an emulator. Authentication is disabled
	// when it is set.
	Endpoint string `mapstructure:"endpoint"`
	// PublicURL overrides the location prefix handed to clients.
	PublicURL string `mapstructure:"public_url"`
}

// Store is a GCS blob store.
type Store struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	baseURL string
}

// New creates a GCS client for cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new gcs store: bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new gcs store: %w", err)
	}

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &Store{
		client:  client,
		bucket:  client.Bucket(cfg.Bucket),
		baseURL: base,
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Location returns the public reference for key.
func (s *Store) Location(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Put uploads content under key. The object only becomes visible once the
// writer is closed, so a failed upload leaves nothing behind.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, _ int64, contentType string) (string, error) {
	if !dams.IsValidStorageKey(key) {
		return "", fmt.Errorf("put %q: %w: invalid storage key", key, dams.ErrInvalidInput)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, content); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.Location(key), nil
}

// Delete removes the object under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return dams.ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read object attrs: %w", err)
	}

	return true, nil
}

// List returns every object in the bucket.
func (s *Store) List(ctx context.Context) ([]dams.BlobInfo, error) {
	it := s.bucket.Objects(ctx, nil)

	blobs := []dams.BlobInfo{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		blobs = append(blobs, dams.BlobInfo{
			Key:        attrs.Name,
			Size:       attrs.Size,
			ModifiedAt: attrs.Updated,
		})
	}

	return blobs, nil
}
