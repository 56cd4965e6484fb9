package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/database/postgres"
	"github.com/sagarc03/dams/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn"`
	// Tables holds the table names
	Tables dams.Tables `mapstructure:"tables"`
}

// Database is an open metadata backend.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Migrate creates any missing tables and indexes.
	Migrate(ctx context.Context) error
	// Validate checks that every table matches the expected schema.
	Validate(ctx context.Context) error
	// GetRepo returns the metadata store backed by this connection.
	GetRepo() dams.MetadataStore
	// Close releases the connection.
	Close() error
}

// Connect opens the configured backend. It validates table names but does
// not migrate; callers decide whether to run Migrate or only Validate.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		return sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
	case "postgres":
		return postgres.Connect(ctx, cfg.DSN, cfg.Tables)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
