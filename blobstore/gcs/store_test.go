package gcs_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sagarc03/dams"
	gcsstore "github.com/sagarc03/dams/blobstore/gcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const bucket = "assets"

// setupStore starts fake-gcs-server with one pre-created bucket.
func setupStore(t *testing.T) *gcsstore.Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping gcs emulator tests in short mode")
	}

	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "fsouza/fake-gcs-server:latest",
		testcontainers.WithExposedPorts("4443/tcp"),
		testcontainers.WithCmd("-scheme", "http", "-port", "4443", "-backend", "memory"),
		testcontainers.WithWaitStrategy(wait.ForHTTP("/storage/v1/b").WithPort("4443/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "failed to start fake-gcs-server")

	endpoint, err := ctr.PortEndpoint(ctx, "4443/tcp", "http")
	require.NoError(t, err)

	createBucket(t, endpoint)

	store, err := gcsstore.New(ctx, gcsstore.Config{
		Bucket:   bucket,
		Endpoint: endpoint + "/storage/v1/",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t.Run("put and exists", func(t *testing.T) {
		location, err := store.Put(ctx, "k-1.txt", strings.NewReader("hello"), 5, "text/plain")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("https://storage.googleapis.com/%s/k-1.txt", bucket), location)

		exists, err := store.Exists(ctx, "k-1.txt")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("exists missing", func(t *testing.T) {
		exists, err := store.Exists(ctx, "missing.txt")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := store.Put(ctx, "a/b", strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, dams.ErrInvalidInput)
	})

	t.Run("list", func(t *testing.T) {
		blobs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, blobs, 1)
		assert.Equal(t, "k-1.txt", blobs[0].Key)
		assert.Equal(t, int64(5), blobs[0].Size)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "k-1.txt"))
		assert.ErrorIs(t, store.Delete(ctx, "k-1.txt"), dams.ErrNotFound)
	})
}
