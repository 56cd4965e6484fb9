// Package repotest holds the behaviour tests shared by every metadata
// store backend.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/dams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated and empty store. Cleanup is registered
// on t by the factory.
type Factory func(t *testing.T) dams.MetadataStore

func newAsset(ownerID, name string) dams.NewAsset {
	return dams.NewAsset{
		OwnerID:    ownerID,
		Filename:   name,
		StorageKey: dams.NewStorageKey(name),
		Location:   "https://assets.example.com/" + name,
		MimeType:   "text/plain",
		SizeBytes:  42,
	}
}

func mustCreate(t *testing.T, repo dams.MetadataStore, ownerID, name string) dams.Asset {
	t.Helper()
	a, err := repo.CreateAsset(context.Background(), newAsset(ownerID, name))
	require.NoError(t, err, "create asset")
	return a
}

// Run exercises the full dams.MetadataStore contract against newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateAsset", func(t *testing.T) { testCreateAsset(t, newRepo) })
	t.Run("GetAsset", func(t *testing.T) { testGetAsset(t, newRepo) })
	t.Run("ListAssets", func(t *testing.T) { testListAssets(t, newRepo) })
	t.Run("UpdateAssetContent", func(t *testing.T) { testUpdateAssetContent(t, newRepo) })
	t.Run("DeleteAsset", func(t *testing.T) { testDeleteAsset(t, newRepo) })
	t.Run("CreateShare", func(t *testing.T) { testCreateShare(t, newRepo) })
	t.Run("ListSharedWith", func(t *testing.T) { testListSharedWith(t, newRepo) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepo) })
	t.Run("Record", func(t *testing.T) { testRecord(t, newRepo) })
}

func testCreateAsset(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	entry := newAsset("owner-1", "a.txt")
	a, err := repo.CreateAsset(ctx, entry)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, entry.OwnerID, a.OwnerID)
	assert.Equal(t, entry.Filename, a.Filename)
	assert.Equal(t, entry.StorageKey, a.StorageKey)
	assert.Equal(t, entry.Location, a.Location)
	assert.Equal(t, entry.MimeType, a.MimeType)
	assert.Equal(t, entry.SizeBytes, a.SizeBytes)
	assert.Equal(t, int64(1), a.Version)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	t.Run("error - duplicate storage key", func(t *testing.T) {
		_, err := repo.CreateAsset(ctx, entry)
		assert.Error(t, err)
	})
}

func testGetAsset(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, "owner-1", "a.txt")

	got, err := repo.GetAsset(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.StorageKey, got.StorageKey)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetAsset(ctx, uuid.New())
	assert.ErrorIs(t, err, dams.ErrNotFound)
}

func testListAssets(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	empty, err := repo.ListAssets(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := mustCreate(t, repo, "owner-1", "first.txt")
	time.Sleep(5 * time.Millisecond)
	other := mustCreate(t, repo, "owner-2", "other.txt")
	time.Sleep(5 * time.Millisecond)
	second := mustCreate(t, repo, "owner-1", "second.txt")

	all, err := repo.ListAssets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{second.ID, other.ID, first.ID}, ids(all), "newest first")

	own, err := repo.ListAssets(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID, first.ID}, ids(own))

	none, err := repo.ListAssets(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testUpdateAssetContent(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, "owner-1", "a.txt")
	time.Sleep(5 * time.Millisecond)

	content := dams.AssetContent{
		Filename:   "b.png",
		StorageKey: dams.NewStorageKey("b.png"),
		Location:   "https://assets.example.com/b.png",
		MimeType:   "image/png",
		SizeBytes:  7,
	}

	updated, err := repo.UpdateAssetContent(ctx, created.ID, created.Version, content)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.OwnerID, updated.OwnerID)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "created_at is immutable")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updated_at is bumped")
	assert.Equal(t, created.Version+1, updated.Version)
	assert.Equal(t, content.Filename, updated.Filename)
	assert.Equal(t, content.StorageKey, updated.StorageKey)
	assert.Equal(t, content.Location, updated.Location)
	assert.Equal(t, content.MimeType, updated.MimeType)
	assert.Equal(t, content.SizeBytes, updated.SizeBytes)

	t.Run("error - stale version conflicts", func(t *testing.T) {
		_, err := repo.UpdateAssetContent(ctx, created.ID, created.Version, content)
		assert.ErrorIs(t, err, dams.ErrConflict)
	})

	t.Run("error - missing asset", func(t *testing.T) {
		_, err := repo.UpdateAssetContent(ctx, uuid.New(), 1, content)
		assert.ErrorIs(t, err, dams.ErrNotFound)
	})
}

func testDeleteAsset(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	a := mustCreate(t, repo, "owner-1", "a.txt")
	_, _, err := repo.CreateShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)

	err = repo.DeleteAsset(ctx, a.ID, a.Version+1)
	assert.ErrorIs(t, err, dams.ErrConflict)

	err = repo.DeleteAsset(ctx, a.ID, a.Version)
	require.NoError(t, err)

	_, err = repo.GetAsset(ctx, a.ID)
	assert.ErrorIs(t, err, dams.ErrNotFound)

	granted, err := repo.HasShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)
	assert.False(t, granted, "grants cascade with the asset")

	shared, err := repo.ListSharedWith(ctx, "grantee-1")
	require.NoError(t, err)
	assert.Empty(t, shared)

	err = repo.DeleteAsset(ctx, a.ID, a.Version)
	assert.ErrorIs(t, err, dams.ErrNotFound)
}

func testCreateShare(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	a := mustCreate(t, repo, "owner-1", "a.txt")

	granted, err := repo.HasShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)
	assert.False(t, granted)

	grant, created, err := repo.CreateShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, a.ID, grant.AssetID)
	assert.Equal(t, "grantee-1", grant.GranteeID)
	assert.False(t, grant.CreatedAt.IsZero())

	again, created, err := repo.CreateShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)
	assert.False(t, created, "re-granting is a no-op")
	assert.True(t, grant.CreatedAt.Equal(again.CreatedAt))

	granted, err = repo.HasShare(ctx, a.ID, "grantee-1")
	require.NoError(t, err)
	assert.True(t, granted)

	t.Run("error - missing asset", func(t *testing.T) {
		_, _, err := repo.CreateShare(ctx, uuid.New(), "grantee-1")
		assert.ErrorIs(t, err, dams.ErrNotFound)
	})
}

func testListSharedWith(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, dams.User{ID: "owner-1", Name: "Ada", Email: "ada@example.com", Role: dams.RoleUser}))

	older := mustCreate(t, repo, "owner-1", "older.txt")
	newer := mustCreate(t, repo, "owner-2", "newer.txt")
	mustCreate(t, repo, "owner-1", "private.txt")

	_, _, err := repo.CreateShare(ctx, older.ID, "grantee-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = repo.CreateShare(ctx, newer.ID, "grantee-1")
	require.NoError(t, err)
	_, _, err = repo.CreateShare(ctx, newer.ID, "grantee-2")
	require.NoError(t, err)

	shared, err := repo.ListSharedWith(ctx, "grantee-1")
	require.NoError(t, err)
	require.Len(t, shared, 2)

	assert.Equal(t, newer.ID, shared[0].ID, "most recent grant first")
	assert.Equal(t, "", shared[0].OwnerName, "owner without a directory entry")
	assert.Equal(t, older.ID, shared[1].ID)
	assert.Equal(t, "Ada", shared[1].OwnerName)
	assert.Equal(t, "ada@example.com", shared[1].OwnerEmail)
	assert.False(t, shared[1].SharedAt.IsZero())

	none, err := repo.ListSharedWith(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testUsers(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetUser(ctx, "u-1")
	assert.ErrorIs(t, err, dams.ErrNotFound)

	require.NoError(t, repo.UpsertUser(ctx, dams.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: dams.RoleUser}))
	require.NoError(t, repo.UpsertUser(ctx, dams.User{ID: "u-1", Name: "Ada L", Email: "ada@example.org", Role: dams.RoleAdmin}))

	u, err := repo.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L", u.Name)
	assert.Equal(t, "ada@example.org", u.Email)
	assert.Equal(t, dams.RoleAdmin, u.Role)
	assert.False(t, u.CreatedAt.IsZero())

	err = repo.UpsertUser(ctx, dams.User{ID: "u-2", Role: "root"})
	assert.ErrorIs(t, err, dams.ErrInvalidInput)
}

func testRecord(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	err := repo.Record(ctx, dams.ActivityEvent{
		ActorID: "u-1",
		Action:  dams.ActivityListAssets,
		Status:  dams.StatusSuccess,
		Message: dams.MessageListed,
	})
	assert.NoError(t, err)

	err = repo.Record(ctx, dams.ActivityEvent{
		ActorID: "u-1",
		Action:  dams.ActivityDelete,
		AssetID: uuid.New(),
		Status:  dams.StatusFailed,
		Message: "delete asset: not found",
	})
	assert.NoError(t, err, "activity may reference assets that no longer exist")
}

func ids(assets []dams.Asset) []uuid.UUID {
	out := make([]uuid.UUID, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}
