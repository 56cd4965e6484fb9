package dams

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization class of an actor.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleViewer:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s (valid roles: admin, user, viewer)", s)
	}
	return role, nil
}

// Actor is the authenticated caller of a service operation. The service
// trusts the identity and role it is given.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsValid() bool {
	return a.ID != "" && a.Role.IsValid()
}

type Asset struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	Location   string    `json:"location"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAsset is the row the repository inserts for a freshly stored blob.
type NewAsset struct {
	OwnerID    string
	Filename   string
	StorageKey string
	Location   string
	MimeType   string
	SizeBytes  int64
}

// AssetContent is the set of columns rewritten by a replace.
type AssetContent struct {
	Filename   string
	StorageKey string
	Location   string
	MimeType   string
	SizeBytes  int64
}

type ShareGrant struct {
	AssetID   uuid.UUID `json:"asset_id"`
	GranteeID string    `json:"shared_with_user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SharedAsset is an asset visible to a grantee together with the owner's
// display details.
type SharedAsset struct {
	Asset
	OwnerName  string    `json:"owner_name"`
	OwnerEmail string    `json:"owner_email"`
	SharedAt   time.Time `json:"shared_at"`
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadInput struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
}

type DeleteResult struct {
	Message string `json:"message"`
}

// BlobInfo describes one stored object as reported by a blob store listing.
type BlobInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// ReplaceOrder selects how Replace sequences the blob swap.
type ReplaceOrder string

const (
	// ReplaceDeleteFirst removes the old blob before writing the new one.
	ReplaceDeleteFirst ReplaceOrder = "delete-first"
	// ReplaceWriteFirst writes the new blob and updates the row before
	// removing the old blob.
	ReplaceWriteFirst ReplaceOrder = "write-first"
)

func (o ReplaceOrder) IsValid() bool {
	switch o {
	case ReplaceDeleteFirst, ReplaceWriteFirst:
		return true
	default:
		return false
	}
}

func ParseReplaceOrder(s string) (ReplaceOrder, error) {
	order := ReplaceOrder(s)
	if !order.IsValid() {
		return "", fmt.Errorf("invalid replace order: %s (valid orders: delete-first, write-first)", s)
	}
	return order, nil
}

// Activity actions recorded for each service operation.
const (
	ActivityUpload     = "upload"
	ActivityListAssets = "get_user_assets"
	ActivityDelete     = "delete_asset"
	ActivityReplace    = "update_asset_metadata"
	ActivityShare      = "share_asset"
	ActivityGetShared  = "get_shared_asset"
	ActivityListShared = "list_shared_assets"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ActivityEvent is an audit record of one service operation. AssetID is
// uuid.Nil for operations that do not target a single asset.
type ActivityEvent struct {
	ActorID   string    `json:"user_id"`
	Action    string    `json:"action"`
	AssetID   uuid.UUID `json:"asset_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
