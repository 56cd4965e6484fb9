// Package config provides configuration loading and validation for dams.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (DAMS_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with DAMS_ prefix:
//   - server.port → DAMS_SERVER_PORT
//   - database.dsn → DAMS_DATABASE_DSN
//   - storage.s3.bucket → DAMS_STORAGE_S3_BUCKET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size
//   - Service: replace_order, cleanup_timeout and the activity log switch
//   - Database: type, DSN, table names and auto_migrate
//   - Storage: blob backend type (filesystem, s3, minio, gcs) and its settings
//   - Session: session backend (file or redis)
//   - CORS: cross-origin resource sharing settings
//   - Reconcile: cron schedule and orphan handling for the consistency sweep
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Replace order must be delete-first or write-first
//   - Session backend must be file or redis
//   - Log level must be debug, info, warn, or error
//
// Table names are checked with dams.Tables.Validate.
package config
