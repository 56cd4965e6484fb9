package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/config"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Load with no config files should use defaults
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, "delete-first", cfg.Service.ReplaceOrder)
	assert.Equal(t, 30, cfg.Service.CleanupTimeout)
	assert.True(t, cfg.Service.Activity)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "dams.db", cfg.Database.DSN)
	assert.Equal(t, dams.DefaultTables(), cfg.Database.Tables)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.Path)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Empty(t, cfg.Reconcile.Schedule)
	assert.Equal(t, time.Hour, cfg.Reconcile.GracePeriod)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.IsProd())
}

func TestLoad_ConfigFile(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
env: prod
server:
  port: 8080
  max_upload_size: 1048576
service:
  replace_order: write-first
  cleanup_timeout: 5
  activity: false
database:
  type: postgres
  dsn: postgres://localhost/test
  auto_migrate: true
  tables:
    users: app_users
    assets: app_assets
    shares: app_shares
    activity: app_activity
storage:
  type: s3
  public_url: https://cdn.example.com
  s3:
    region: eu-west-1
    bucket: assets
    endpoint: http://localhost:9000
    use_path_style: true
session:
  backend: redis
  ttl: 2h
  redis:
    addr: redis:6379
    db: 2
reconcile:
  schedule: "@every 1h"
  delete_orphans: true
  grace_period: 30m
log:
  level: debug
`)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadSize)
	assert.Equal(t, "write-first", cfg.Service.ReplaceOrder)
	assert.False(t, cfg.Service.Activity)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/test", cfg.Database.DSN)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, dams.Tables{Users: "app_users", Assets: "app_assets", Shares: "app_shares", Activity: "app_activity"}, cfg.Database.Tables)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.PublicURL)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
	assert.Equal(t, "assets", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "redis:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, 2, cfg.Session.Redis.DB)
	assert.Equal(t, "@every 1h", cfg.Reconcile.Schedule)
	assert.True(t, cfg.Reconcile.DeleteOrphans)
	assert.Equal(t, 30*time.Minute, cfg.Reconcile.GracePeriod)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	basePath := writeConfig(t, "base.yaml", `
server:
  port: 5000
service:
  replace_order: delete-first
database:
  type: sqlite
  dsn: base.db
storage:
  type: filesystem
  path: ./data
`)

	overridePath := writeConfig(t, "override.yaml", `
server:
  port: 9000
service:
  replace_order: write-first
`)

	// Load with merge (later files override earlier)
	cfg, err := config.Load([]string{basePath, overridePath}, nil)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "write-first", cfg.Service.ReplaceOrder)

	// Preserved values from base
	assert.Equal(t, "base.db", cfg.Database.DSN)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
}

func TestLoad_InlineSessions(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
session:
  backend: file
  inline:
    - session_id: dev-admin
      user_id: u-1
      name: Admin
      email: admin@example.com
      role: admin
    - session_id: dev-user
      user_id: u-2
      role: user
`)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	require.Len(t, cfg.Session.Inline, 2)
	assert.Equal(t, "dev-admin", cfg.Session.Inline[0].ID)
	assert.Equal(t, "u-1", cfg.Session.Inline[0].UserID)
	assert.Equal(t, "admin@example.com", cfg.Session.Inline[0].Email)
	assert.Equal(t, dams.RoleAdmin, cfg.Session.Inline[0].Role)
	assert.Equal(t, dams.RoleUser, cfg.Session.Inline[1].Role)
}

func TestLoad_WithCORS(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
cors:
  enabled: true
  allowed_origins:
    - https://example.com
    - https://app.example.com
  allowed_methods:
    - GET
    - PUT
  allowed_headers:
    - Content-Type
  allow_credentials: true
  max_age: 600
`)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, []string{"https://example.com", "https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"GET", "PUT"}, cfg.CORS.AllowedMethods)
	assert.Equal(t, []string{"Content-Type"}, cfg.CORS.AllowedHeaders)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, 600, cfg.CORS.MaxAge)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid port",
			content: "server:\n  port: 99999\n",
		},
		{
			name:    "invalid replace order",
			content: "service:\n  replace_order: sideways\n",
		},
		{
			name:    "zero cleanup timeout",
			content: "service:\n  cleanup_timeout: 0\n",
		},
		{
			name:    "invalid session backend",
			content: "session:\n  backend: memcached\n",
		},
		{
			name:    "invalid log level",
			content: "log:\n  level: verbose\n",
		},
		{
			name:    "invalid env",
			content: "env: staging\n",
		},
		{
			name:    "invalid table name",
			content: "database:\n  tables:\n    assets: Assets\n",
		},
		{
			name:    "duplicate table names",
			content: "database:\n  tables:\n    users: assets\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "config.yaml", tt.content)

			_, err := config.Load([]string{configPath}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DAMS_SERVER_PORT", "9090")
	t.Setenv("DAMS_DATABASE_TYPE", "postgres")
	t.Setenv("DAMS_STORAGE_TYPE", "minio")
	t.Setenv("DAMS_SERVICE_REPLACE_ORDER", "write-first")

	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "write-first", cfg.Service.ReplaceOrder)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DAMS_SERVER_PORT", "9090")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 5000, "")
	flags.String("db-dsn", "", "")
	flags.String("storage-path", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7070", "--db-dsn", "flag.db"}))

	cfg, err := config.Load(nil, flags)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "flag.db", cfg.Database.DSN)
	// unset flags do not shadow defaults
	assert.Equal(t, "./data", cfg.Storage.Path)
}

func TestConfig_Conversions(t *testing.T) {
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	svc := cfg.AssetServiceConfig()
	assert.Equal(t, dams.ReplaceDeleteFirst, svc.ReplaceOrder)
	assert.Equal(t, 30*time.Second, svc.CleanupTimeout)
	assert.Nil(t, svc.Activity)

	opts := cfg.ReconcileOptions()
	assert.False(t, opts.DeleteOrphans)
	assert.Equal(t, time.Hour, opts.GracePeriod)
}

func TestContext(t *testing.T) {
	_, err := config.FromContext(context.Background())
	require.Error(t, err)

	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	got, err := config.FromContext(config.WithContext(context.Background(), cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
