package dams

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetRepo defines the interface for asset metadata persistence.
// Implementations must handle concurrent access safely; conflicting writes to
// one asset row are serialized by compare-and-set on Asset.Version.
//
// All methods accept a context for cancellation and timeout control.
type AssetRepo interface {
	// CreateAsset inserts a new asset row owned by entry.OwnerID.
	//
	// Returns:
	//   - Asset: The persisted row with generated ID, Version 1 and timestamps
	//   - error: Any database or validation error
	CreateAsset(ctx context.Context, entry NewAsset) (Asset, error)

	// GetAsset retrieves one asset by ID regardless of owner.
	//
	// Returns:
	//   - error: ErrNotFound if the asset doesn't exist, or other database errors
	GetAsset(ctx context.Context, id uuid.UUID) (Asset, error)

	// ListAssets returns the assets owned by ownerID, newest first. An empty
	// ownerID lists every asset. The result is empty, not nil, when nothing
	// matches.
	ListAssets(ctx context.Context, ownerID string) ([]Asset, error)

	// UpdateAssetContent rewrites the content columns of an asset, bumps
	// UpdatedAt and increments Version, provided the stored Version still
	// equals version.
	//
	// Returns:
	//   - Asset: The updated row
	//   - error: ErrNotFound if the row is gone, ErrConflict if the version moved
	UpdateAssetContent(ctx context.Context, id uuid.UUID, version int64, content AssetContent) (Asset, error)

	// DeleteAsset removes an asset row and all of its share grants, provided
	// the stored Version still equals version.
	//
	// Returns:
	//   - error: ErrNotFound if the row is gone, ErrConflict if the version moved
	DeleteAsset(ctx context.Context, id uuid.UUID, version int64) error

	// CreateShare grants granteeID view access to an asset. Granting twice is
	// a no-op that returns the existing grant.
	//
	// Returns:
	//   - ShareGrant: The new or existing grant
	//   - bool: true if a grant was inserted, false if it already existed
	//   - error: ErrNotFound if the asset doesn't exist, or other database errors
	CreateShare(ctx context.Context, assetID uuid.UUID, granteeID string) (ShareGrant, bool, error)

	// HasShare reports whether a grant exists for (assetID, granteeID).
	HasShare(ctx context.Context, assetID uuid.UUID, granteeID string) (bool, error)

	// ListSharedWith returns every asset granted to granteeID with the owner's
	// display details, most recent grant first. The result is empty, not nil,
	// when nothing matches.
	ListSharedWith(ctx context.Context, granteeID string) ([]SharedAsset, error)
}

// BlobStore defines the interface for opaque object storage.
// Implementations can use the local filesystem, S3, MinIO, GCS or any other
// backend addressed by flat keys.
type BlobStore interface {
	// Put stores content under key and returns the location reference that
	// clients use to fetch it.
	//
	// Parameters:
	//   - key: A key accepted by IsValidStorageKey
	//   - content: The object data
	//   - size: Number of bytes content will yield
	//   - contentType: MIME type recorded with the object where supported
	//
	// Implementations should write atomically when the backend allows it and
	// must not leave a partial object behind on failure.
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) (string, error)

	// Delete removes the object stored under key.
	//
	// Returns:
	//   - error: ErrNotFound if no object exists under key, or other storage errors
	Delete(ctx context.Context, key string) error
}

// BlobInventory enumerates a blob store. It backs the reconciliation sweep.
type BlobInventory interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every object in the store. It returns an empty slice, not
	// nil, when the store is empty.
	//
	// Warning: This can be expensive for large buckets.
	List(ctx context.Context) ([]BlobInfo, error)
}

// BlobBackend is a blob store that can also be enumerated.
type BlobBackend interface {
	BlobStore
	BlobInventory
}

// ActivityRecorder receives one audit event per service operation.
type ActivityRecorder interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// NopRecorder discards activity events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, ActivityEvent) error { return nil }

const (
	MessageUploaded      = "File uploaded successfully"
	MessageListed        = "Assets retrieved successfully"
	MessageDeleted       = "Asset deleted successfully"
	MessageReplaced      = "Asset metadata updated successfully"
	MessageShared        = "Asset shared successfully"
	MessageAlreadyShared = "Asset already shared with this user"
	MessageSharedFetched = "Shared asset retrieved successfully"
	MessageSharedListed  = "Shared assets retrieved successfully"
)

const defaultMimeType = "application/octet-stream"

// ServiceConfig holds configuration options for AssetService.
type ServiceConfig struct {
	ReplaceOrder   ReplaceOrder
	CleanupTimeout time.Duration // Timeout for cleanup and audit writes (default: 30s)
	Activity       ActivityRecorder
}

// AssetService coordinates the blob store and the metadata repository and
// enforces ownership and sharing rules. It holds no per-asset state; every
// call is an independent unit of work.
type AssetService struct {
	repo           AssetRepo
	blobs          BlobStore
	activity       ActivityRecorder
	replaceOrder   ReplaceOrder
	cleanupTimeout time.Duration
}

func NewAssetService(repo AssetRepo, blobs BlobStore, cfg ServiceConfig) (*AssetService, error) {
	order := cfg.ReplaceOrder
	if order == "" {
		order = ReplaceDeleteFirst
	}
	if !order.IsValid() {
		return nil, fmt.Errorf("new asset service: invalid replace order: %s", cfg.ReplaceOrder)
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	activity := cfg.Activity
	if activity == nil {
		activity = NopRecorder{}
	}
	return &AssetService{
		repo:           repo,
		blobs:          blobs,
		activity:       activity,
		replaceOrder:   order,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// Upload stores a new blob and records its metadata row owned by actor.
//
// The method performs the following steps:
//  1. Validates the actor and input (non-empty filename and content)
//  2. Generates a fresh storage key from the sanitised filename
//  3. Writes the blob; on failure nothing is persisted
//  4. Inserts the metadata row
//
// If the insert fails the blob is left in place and logged as an orphan; the
// reconciliation sweep removes it later.
//
// Error types returned:
//   - ErrInvalidInput: Missing filename or empty content
//   - ErrStorage: The blob write failed
//   - ErrRepository: The metadata insert failed
func (s *AssetService) Upload(ctx context.Context, actor Actor, in UploadInput) (asset Asset, err error) {
	defer func() { s.record(ctx, actor, ActivityUpload, asset.ID, MessageUploaded, err) }()

	if err := ctx.Err(); err != nil {
		return Asset{}, fmt.Errorf("upload: %w", err)
	}

	if !actor.IsValid() {
		return Asset{}, fmt.Errorf("upload: %w: invalid actor", ErrInvalidInput)
	}

	in, err = normalizeUpload(in)
	if err != nil {
		return Asset{}, fmt.Errorf("upload: %w", err)
	}

	key := NewStorageKey(in.Filename)

	location, putErr := s.blobs.Put(ctx, key, in.Content, in.Size, in.MimeType)
	if putErr != nil {
		return Asset{}, fmt.Errorf("upload %s: put blob: %w", key, storageFailure(putErr))
	}

	asset, createErr := s.repo.CreateAsset(ctx, NewAsset{
		OwnerID:    actor.ID,
		Filename:   in.Filename,
		StorageKey: key,
		Location:   location,
		MimeType:   in.MimeType,
		SizeBytes:  in.Size,
	})
	if createErr != nil {
		slog.Warn("orphaned blob: metadata insert failed", "key", key, "err", createErr)
		return Asset{}, fmt.Errorf("upload %s: create asset: %w", key, repositoryFailure(createErr))
	}

	return asset, nil
}

// Replace swaps the content of an existing asset for new content. ID,
// OwnerID and CreatedAt never change; every other content column is
// rewritten, UpdatedAt is bumped and Version is incremented.
//
// With ReplaceDeleteFirst the old blob is removed before the new one is
// written, so a failed write leaves the row pointing at a missing blob. With
// ReplaceWriteFirst the row is updated before the old blob is removed, so a
// failed delete leaves an orphaned blob. Both cases are logged.
//
// The row update is a compare-and-set on Version. When another writer wins,
// the newly written blob is removed with a background context and
// ErrConflict is returned.
//
// Error types returned:
//   - ErrInvalidInput: Missing filename or empty content
//   - ErrNotFound: The asset doesn't exist
//   - ErrForbidden: The actor is neither admin nor owner
//   - ErrStorage: A blob write or delete failed
//   - ErrConflict: The row changed concurrently
//   - ErrRepository: The metadata update failed
func (s *AssetService) Replace(ctx context.Context, actor Actor, id uuid.UUID, in UploadInput) (asset Asset, err error) {
	defer func() { s.record(ctx, actor, ActivityReplace, id, MessageReplaced, err) }()

	if err := ctx.Err(); err != nil {
		return Asset{}, fmt.Errorf("replace asset: %w", err)
	}

	in, err = normalizeUpload(in)
	if err != nil {
		return Asset{}, fmt.Errorf("replace asset %s: %w", id, err)
	}

	current, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, fmt.Errorf("replace asset %s: %w", id, repositoryFailure(err))
	}

	if !CanPerform(actor, current, ActionReplace, false) {
		return Asset{}, fmt.Errorf("replace asset %s: %w", id, ErrForbidden)
	}

	switch s.replaceOrder {
	case ReplaceWriteFirst:
		return s.replaceWriteFirst(ctx, current, in)
	default:
		return s.replaceDeleteFirst(ctx, current, in)
	}
}

func (s *AssetService) replaceDeleteFirst(ctx context.Context, current Asset, in UploadInput) (Asset, error) {
	if err := s.deleteBlob(ctx, current.StorageKey); err != nil {
		return Asset{}, fmt.Errorf("replace asset %s: delete old blob: %w", current.ID, storageFailure(err))
	}

	key := NewStorageKey(in.Filename)

	location, putErr := s.blobs.Put(ctx, key, in.Content, in.Size, in.MimeType)
	if putErr != nil {
		slog.Warn("dangling asset: old blob deleted but new blob write failed",
			"asset_id", current.ID, "key", current.StorageKey, "err", putErr)
		return Asset{}, fmt.Errorf("replace asset %s: put blob: %w", current.ID, storageFailure(putErr))
	}

	updated, updateErr := s.updateContent(ctx, current, in, key, location)
	if updateErr != nil {
		if !errors.Is(updateErr, ErrConflict) {
			slog.Warn("dangling asset: old blob deleted but metadata update failed",
				"asset_id", current.ID, "key", current.StorageKey, "err", updateErr)
		}
		return Asset{}, updateErr
	}

	return updated, nil
}

func (s *AssetService) replaceWriteFirst(ctx context.Context, current Asset, in UploadInput) (Asset, error) {
	key := NewStorageKey(in.Filename)

	location, putErr := s.blobs.Put(ctx, key, in.Content, in.Size, in.MimeType)
	if putErr != nil {
		return Asset{}, fmt.Errorf("replace asset %s: put blob: %w", current.ID, storageFailure(putErr))
	}

	updated, updateErr := s.updateContent(ctx, current, in, key, location)
	if updateErr != nil {
		return Asset{}, updateErr
	}

	if err := s.deleteBlob(ctx, current.StorageKey); err != nil {
		slog.Warn("orphaned blob: old blob delete failed after replace",
			"asset_id", current.ID, "key", current.StorageKey, "err", err)
	}

	return updated, nil
}

// updateContent applies the compare-and-set row update for a replace whose
// new blob is already stored under key. On conflict the new blob is removed;
// on any other failure it is left for reconciliation since the update may
// still have been applied.
func (s *AssetService) updateContent(ctx context.Context, current Asset, in UploadInput, key, location string) (Asset, error) {
	updated, err := s.repo.UpdateAssetContent(ctx, current.ID, current.Version, AssetContent{
		Filename:   in.Filename,
		StorageKey: key,
		Location:   location,
		MimeType:   in.MimeType,
		SizeBytes:  in.Size,
	})
	if err == nil {
		return updated, nil
	}

	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		s.cleanupBlob(key)
		return Asset{}, fmt.Errorf("replace asset %s: %w", current.ID, err)
	}

	slog.Warn("orphaned blob: metadata update failed", "asset_id", current.ID, "key", key, "err", err)
	return Asset{}, fmt.Errorf("replace asset %s: update asset: %w", current.ID, repositoryFailure(err))
}

// Delete removes an asset's blob and then its metadata row and grants.
//
// A blob that is already missing is tolerated. If the row delete fails after
// the blob is gone, the row is left dangling and logged.
//
// Error types returned:
//   - ErrNotFound: The asset doesn't exist
//   - ErrForbidden: The actor is neither admin nor owner
//   - ErrStorage: The blob delete failed; the row is left untouched
//   - ErrConflict: The row changed concurrently
//   - ErrRepository: The metadata delete failed
func (s *AssetService) Delete(ctx context.Context, actor Actor, id uuid.UUID) (result DeleteResult, err error) {
	defer func() { s.record(ctx, actor, ActivityDelete, id, MessageDeleted, err) }()

	if err := ctx.Err(); err != nil {
		return DeleteResult{}, fmt.Errorf("delete asset: %w", err)
	}

	current, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete asset %s: %w", id, repositoryFailure(err))
	}

	if !CanPerform(actor, current, ActionDelete, false) {
		return DeleteResult{}, fmt.Errorf("delete asset %s: %w", id, ErrForbidden)
	}

	if err := s.deleteBlob(ctx, current.StorageKey); err != nil {
		return DeleteResult{}, fmt.Errorf("delete asset %s: delete blob: %w", id, storageFailure(err))
	}

	if err := s.repo.DeleteAsset(ctx, id, current.Version); err != nil {
		slog.Warn("dangling asset: blob deleted but metadata delete failed",
			"asset_id", id, "key", current.StorageKey, "err", err)
		return DeleteResult{}, fmt.Errorf("delete asset %s: %w", id, repositoryFailure(err))
	}

	return DeleteResult{Message: MessageDeleted}, nil
}

// ListForActor returns every asset for admins and the actor's own assets
// otherwise, newest first.
func (s *AssetService) ListForActor(ctx context.Context, actor Actor) (assets []Asset, err error) {
	defer func() { s.record(ctx, actor, ActivityListAssets, uuid.Nil, MessageListed, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	if !actor.IsValid() {
		return nil, fmt.Errorf("list assets: %w: invalid actor", ErrInvalidInput)
	}

	ownerID := actor.ID
	if actor.IsAdmin() {
		ownerID = ""
	}

	assets, err = s.repo.ListAssets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", repositoryFailure(err))
	}
	if assets == nil {
		assets = []Asset{}
	}

	return assets, nil
}

// Share grants granteeID view access to an asset. It returns created=false
// with the existing grant when the asset is already shared with granteeID.
//
// Error types returned:
//   - ErrInvalidInput: Empty grantee
//   - ErrNotFound: The asset doesn't exist
//   - ErrForbidden: The actor is neither admin nor owner
//   - ErrRepository: The grant insert failed
func (s *AssetService) Share(ctx context.Context, actor Actor, id uuid.UUID, granteeID string) (grant ShareGrant, created bool, err error) {
	defer func() {
		message := MessageShared
		if err == nil && !created {
			message = MessageAlreadyShared
		}
		s.record(ctx, actor, ActivityShare, id, message, err)
	}()

	if err := ctx.Err(); err != nil {
		return ShareGrant{}, false, fmt.Errorf("share asset: %w", err)
	}

	granteeID = strings.TrimSpace(granteeID)
	if granteeID == "" {
		return ShareGrant{}, false, fmt.Errorf("share asset %s: %w: grantee cannot be empty", id, ErrInvalidInput)
	}

	current, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return ShareGrant{}, false, fmt.Errorf("share asset %s: %w", id, repositoryFailure(err))
	}

	if !CanPerform(actor, current, ActionShare, false) {
		return ShareGrant{}, false, fmt.Errorf("share asset %s: %w", id, ErrForbidden)
	}

	grant, created, err = s.repo.CreateShare(ctx, id, granteeID)
	if err != nil {
		return ShareGrant{}, false, fmt.Errorf("share asset %s: %w", id, repositoryFailure(err))
	}

	return grant, created, nil
}

// GetShared fetches one asset the actor may view. Admins may fetch any
// existing asset and owners their own; everyone else needs a share grant.
// For non-admins a missing asset and a missing grant both yield
// ErrForbidden, so the result never reveals whether the asset exists.
func (s *AssetService) GetShared(ctx context.Context, actor Actor, id uuid.UUID) (asset Asset, err error) {
	defer func() { s.record(ctx, actor, ActivityGetShared, id, MessageSharedFetched, err) }()

	if err := ctx.Err(); err != nil {
		return Asset{}, fmt.Errorf("get shared asset: %w", err)
	}

	if !actor.IsValid() {
		return Asset{}, fmt.Errorf("get shared asset %s: %w", id, ErrForbidden)
	}

	asset, err = s.repo.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) && !actor.IsAdmin() {
			return Asset{}, fmt.Errorf("get shared asset %s: %w", id, ErrForbidden)
		}
		return Asset{}, fmt.Errorf("get shared asset %s: %w", id, repositoryFailure(err))
	}

	if CanPerform(actor, asset, ActionView, false) {
		return asset, nil
	}

	granted, err := s.repo.HasShare(ctx, id, actor.ID)
	if err != nil {
		return Asset{}, fmt.Errorf("get shared asset %s: %w", id, repositoryFailure(err))
	}

	if !CanPerform(actor, asset, ActionView, granted) {
		return Asset{}, fmt.Errorf("get shared asset %s: %w", id, ErrForbidden)
	}

	return asset, nil
}

// ListSharedWithActor returns the assets shared with the actor, most recent
// grant first.
func (s *AssetService) ListSharedWithActor(ctx context.Context, actor Actor) (assets []SharedAsset, err error) {
	defer func() { s.record(ctx, actor, ActivityListShared, uuid.Nil, MessageSharedListed, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list shared assets: %w", err)
	}

	if !actor.IsValid() {
		return nil, fmt.Errorf("list shared assets: %w: invalid actor", ErrInvalidInput)
	}

	assets, err = s.repo.ListSharedWith(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list shared assets: %w", repositoryFailure(err))
	}
	if assets == nil {
		assets = []SharedAsset{}
	}

	return assets, nil
}

func normalizeUpload(in UploadInput) (UploadInput, error) {
	in.Filename = strings.TrimSpace(in.Filename)
	if in.Filename == "" {
		return UploadInput{}, fmt.Errorf("%w: filename cannot be empty", ErrInvalidInput)
	}
	if in.Content == nil || in.Size <= 0 {
		return UploadInput{}, fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}
	if in.MimeType == "" {
		in.MimeType = defaultMimeType
	}
	return in, nil
}

// deleteBlob deletes key and treats an already missing blob as success.
func (s *AssetService) deleteBlob(ctx context.Context, key string) error {
	err := s.blobs.Delete(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// cleanupBlob removes a blob that no row references. It uses a background
// context since the request context may already be cancelled.
func (s *AssetService) cleanupBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.deleteBlob(ctx, key); err != nil {
		slog.Warn("orphaned blob: cleanup failed", "key", key, "err", err)
	}
}

func (s *AssetService) record(ctx context.Context, actor Actor, action string, assetID uuid.UUID, message string, opErr error) {
	event := ActivityEvent{
		ActorID: actor.ID,
		Action:  action,
		AssetID: assetID,
		Status:  StatusSuccess,
		Message: message,
	}
	if opErr != nil {
		event.Status = StatusFailed
		event.Message = opErr.Error()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	if err := s.activity.Record(recordCtx, event); err != nil {
		slog.Warn("record activity failed", "action", action, "user_id", actor.ID, "err", err)
	}
}
