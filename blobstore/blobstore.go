// Package blobstore opens the configured dams blob backend.
//
// Supported backends:
//   - filesystem: a local directory served under PublicURL
//   - s3: Amazon S3 or any S3-compatible endpoint
//   - minio: MinIO through its native client
//   - gcs: Google Cloud Storage
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/blobstore/filesystem"
	"github.com/sagarc03/dams/blobstore/gcs"
	"github.com/sagarc03/dams/blobstore/minio"
	"github.com/sagarc03/dams/blobstore/s3"
)

// Config selects and configures one backend. Only the section matching Type
// is read.
type Config struct {
	Type      string       `mapstructure:"type"`
	PublicURL string       `mapstructure:"public_url"`
	Path      string       `mapstructure:"path"`
	S3        s3.Config    `mapstructure:"s3"`
	MinIO     minio.Config `mapstructure:"minio"`
	GCS       gcs.Config   `mapstructure:"gcs"`
}

// Backend is an open blob store. Close releases any handles it holds.
type Backend interface {
	dams.BlobBackend
	io.Closer
}

type closer struct {
	dams.BlobBackend
	close func() error
}

func (c closer) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Open creates the backend named by cfg.Type. The filesystem store is also
// returned so the HTTP layer can serve its objects; it is nil for remote
// backends.
func Open(ctx context.Context, cfg Config) (Backend, *filesystem.Store, error) {
	switch cfg.Type {
	case "filesystem":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("open blobstore: create directory: %w", err)
		}

		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open blobstore: %w", err)
		}

		store := filesystem.NewStore(root, cfg.PublicURL)
		return closer{BlobBackend: store, close: root.Close}, store, nil

	case "s3":
		s3cfg := cfg.S3
		if s3cfg.PublicURL == "" {
			s3cfg.PublicURL = cfg.PublicURL
		}

		store, err := s3.New(ctx, s3cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open blobstore: %w", err)
		}
		return closer{BlobBackend: store}, nil, nil

	case "minio":
		mcfg := cfg.MinIO
		if mcfg.PublicURL == "" {
			mcfg.PublicURL = cfg.PublicURL
		}

		store, err := minio.New(ctx, mcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open blobstore: %w", err)
		}
		return closer{BlobBackend: store}, nil, nil

	case "gcs":
		gcfg := cfg.GCS
		if gcfg.PublicURL == "" {
			gcfg.PublicURL = cfg.PublicURL
		}

		store, err := gcs.New(ctx, gcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open blobstore: %w", err)
		}
		return closer{BlobBackend: store, close: store.Close}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
