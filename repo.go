package dams

import (
	"context"
	"fmt"
	"regexp"
)

// Tables holds configurable table names for the metadata store.
// This allows several deployments to share one database.
type Tables struct {
	Users    string `mapstructure:"users"`
	Assets   string `mapstructure:"assets"`
	Shares   string `mapstructure:"shares"`
	Activity string `mapstructure:"activity"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Users:    "users",
		Assets:   "assets",
		Shares:   "shared_assets",
		Activity: "activity_logs",
	}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		kind  string
		value string
	}{
		{"users", t.Users},
		{"assets", t.Assets},
		{"shares", t.Shares},
		{"activity", t.Activity},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.kind)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.kind, n.value)
		}
		if other, ok := seen[n.value]; ok {
			return fmt.Errorf("validate tables: %s and %s tables share the name %s", other, n.kind, n.value)
		}
		seen[n.value] = n.kind
	}

	return nil
}

// UserDirectory stores the display details of users that own assets.
type UserDirectory interface {
	// UpsertUser creates the user or updates its name, email and role.
	UpsertUser(ctx context.Context, user User) error

	// GetUser retrieves one user by ID.
	//
	// Returns:
	//   - error: ErrNotFound if the user doesn't exist, or other database errors
	GetUser(ctx context.Context, id string) (User, error)
}

// MetadataStore is everything a relational backend provides: asset
// metadata, share grants, the user directory and the activity log.
type MetadataStore interface {
	AssetRepo
	ActivityRecorder
	UserDirectory
}
