package blobstore_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sagarc03/dams/blobstore"
	"github.com/sagarc03/dams/blobstore/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Filesystem(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "blobs")

	backend, files, err := blobstore.Open(ctx, blobstore.Config{
		Type:      "filesystem",
		Path:      dir,
		PublicURL: "http://localhost:5708/files",
	})
	require.NoError(t, err)
	require.NotNil(t, files)
	t.Cleanup(func() { _ = backend.Close() })

	location, err := backend.Put(ctx, "k.txt", strings.NewReader("abc"), 3, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5708/files/k.txt", location)

	exists, err := backend.Exists(ctx, "k.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_S3(t *testing.T) {
	backend, files, err := blobstore.Open(context.Background(), blobstore.Config{
		Type: "s3",
		S3: s3.Config{
			Region:          "us-east-1",
			Bucket:          "assets",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		},
	})
	require.NoError(t, err)
	assert.Nil(t, files)
	assert.NoError(t, backend.Close())
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     blobstore.Config
		wantErr string
	}{
		{"unknown type", blobstore.Config{Type: "ftp"}, "unsupported storage type: ftp"},
		{"s3 without bucket", blobstore.Config{Type: "s3"}, "bucket name is required"},
		{"minio without bucket", blobstore.Config{Type: "minio"}, "bucket name is required"},
		{"gcs without bucket", blobstore.Config{Type: "gcs"}, "bucket name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := blobstore.Open(context.Background(), tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
