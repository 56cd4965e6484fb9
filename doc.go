// Package dams implements the storage and access-control core of a digital
// asset management service.
//
// Users upload files to a blob store while the metadata for each file lives
// in a relational repository. Assets belong to the user who uploaded them and
// can be shared with other users for viewing.
//
// # Key Components
//
//   - AssetService: Coordinates blob writes and deletes with metadata rows
//   - AssetRepo: Interface for metadata persistence (PostgreSQL, SQLite)
//   - BlobStore: Interface for object storage (filesystem, S3, MinIO, GCS)
//   - CanPerform: Pure access-control evaluator over roles, ownership and grants
//   - Reconciler: Finds orphaned blobs and dangling rows left by partial failures
//
// # Roles
//
//   - RoleAdmin: May act on every asset
//   - RoleUser: May act on own assets and view assets shared with them
//   - RoleViewer: Same permissions as RoleUser
//
// # Example Usage
//
//	service, err := dams.NewAssetService(repo, blobs, dams.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	actor := dams.Actor{ID: "user-1", Role: dams.RoleUser}
//
//	asset, err := service.Upload(ctx, actor, dams.UploadInput{
//	    Filename: "report.pdf",
//	    MimeType: "application/pdf",
//	    Size:     size,
//	    Content:  reader,
//	})
//
//	_, _, err = service.Share(ctx, actor, asset.ID, "user-2")
//
// See the http package for the REST API, the database package for metadata
// backends and the blobstore package for storage backends.
package dams
