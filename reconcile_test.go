package dams_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sagarc03/dams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_Sweep(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	t.Run("reports dangling rows and orphans", func(t *testing.T) {
		repo := new(SpyAssetRepo)
		blobs := new(SpyBlobStore)
		ctx := context.Background()

		kept := sampleAsset(owner.ID)
		dangling := sampleAsset(owner.ID)
		repo.On("ListAssets", ctx, "").Return([]dams.Asset{kept, dangling}, nil)
		blobs.On("Exists", ctx, kept.StorageKey).Return(true, nil)
		blobs.On("Exists", ctx, dangling.StorageKey).Return(false, nil)
		blobs.On("List", ctx).Return([]dams.BlobInfo{
			{Key: kept.StorageKey, ModifiedAt: old},
			{Key: "orphan-1", ModifiedAt: old},
		}, nil)

		report, err := dams.NewReconciler(repo, blobs).Sweep(ctx, dams.ReconcileOptions{})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Checked)
		assert.Equal(t, 2, report.Blobs)
		assert.Equal(t, []dams.Asset{dangling}, report.Dangling)
		assert.Equal(t, []string{"orphan-1"}, report.Orphans)
		assert.Zero(t, report.Deleted)
		blobs.AssertNotCalled(t, "Delete", ctx, "orphan-1")
	})

	t.Run("deletes orphans past the grace period", func(t *testing.T) {
		repo := new(SpyAssetRepo)
		blobs := new(SpyBlobStore)
		ctx := context.Background()

		repo.On("ListAssets", ctx, "").Return([]dams.Asset{}, nil)
		blobs.On("List", ctx).Return([]dams.BlobInfo{
			{Key: "old-orphan", ModifiedAt: old},
			{Key: "fresh-orphan", ModifiedAt: fresh},
		}, nil)
		blobs.On("Delete", ctx, "old-orphan").Return(nil)

		report, err := dams.NewReconciler(repo, blobs).Sweep(ctx, dams.ReconcileOptions{
			DeleteOrphans: true,
			GracePeriod:   time.Hour,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"old-orphan", "fresh-orphan"}, report.Orphans)
		assert.Equal(t, 1, report.Deleted)
		blobs.AssertNotCalled(t, "Delete", ctx, "fresh-orphan")
	})

	t.Run("error - list assets", func(t *testing.T) {
		repo := new(SpyAssetRepo)
		blobs := new(SpyBlobStore)
		ctx := context.Background()

		repo.On("ListAssets", ctx, "").Return([]dams.Asset(nil), errors.New("db down"))

		_, err := dams.NewReconciler(repo, blobs).Sweep(ctx, dams.ReconcileOptions{})
		assert.ErrorIs(t, err, dams.ErrRepository)
		blobs.AssertNotCalled(t, "List", ctx)
	})

	t.Run("error - blob listing", func(t *testing.T) {
		repo := new(SpyAssetRepo)
		blobs := new(SpyBlobStore)
		ctx := context.Background()

		repo.On("ListAssets", ctx, "").Return([]dams.Asset{}, nil)
		blobs.On("List", ctx).Return([]dams.BlobInfo(nil), errors.New("bucket missing"))

		_, err := dams.NewReconciler(repo, blobs).Sweep(ctx, dams.ReconcileOptions{})
		assert.ErrorIs(t, err, dams.ErrStorage)
	})
}
