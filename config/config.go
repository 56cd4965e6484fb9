package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/blobstore"
	"github.com/sagarc03/dams/database"
	damshttp "github.com/sagarc03/dams/http"
	"github.com/sagarc03/dams/session"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for dams.
type Config struct {
	Env       string              `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server    ServerConfig        `mapstructure:"server"`
	Service   ServiceConfig       `mapstructure:"service"`
	Database  DatabaseConfig      `mapstructure:"database"`
	Storage   blobstore.Config    `mapstructure:"storage"`
	Session   session.Config      `mapstructure:"session"`
	CORS      damshttp.CORSConfig `mapstructure:"cors"`
	Reconcile ReconcileConfig     `mapstructure:"reconcile"`
	Log       LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	ReplaceOrder   string `mapstructure:"replace_order" validate:"required,oneof=delete-first write-first"`
	CleanupTimeout int    `mapstructure:"cleanup_timeout" validate:"min=1"`
	Activity       bool   `mapstructure:"activity"`
}

// DatabaseConfig holds metadata database configuration.
type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	AutoMigrate     bool `mapstructure:"auto_migrate"`
}

// ReconcileConfig controls the blob/metadata consistency sweep.
type ReconcileConfig struct {
	// Schedule is a cron expression; empty disables the sweep in serve.
	Schedule      string        `mapstructure:"schedule"`
	DeleteOrphans bool          `mapstructure:"delete_orphans"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProd reports whether the config selects production logging.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// AssetServiceConfig converts the service section into dams.ServiceConfig.
// The activity recorder is left for the caller to set.
func (c *Config) AssetServiceConfig() dams.ServiceConfig {
	return dams.ServiceConfig{
		ReplaceOrder:   dams.ReplaceOrder(c.Service.ReplaceOrder),
		CleanupTimeout: time.Duration(c.Service.CleanupTimeout) * time.Second,
	}
}

// ReconcileOptions converts the reconcile section into dams.ReconcileOptions.
func (c *Config) ReconcileOptions() dams.ReconcileOptions {
	return dams.ReconcileOptions{
		DeleteOrphans: c.Reconcile.DeleteOrphans,
		GracePeriod:   c.Reconcile.GracePeriod,
	}
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-type":    "storage.type",
	"storage-path":    "storage.path",
	"session-backend": "session.backend",
	"port":            "server.port",
	"replace-order":   "service.replace_order",
	"delete-orphans":  "reconcile.delete_orphans",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.max_upload_size", 100<<20)

	v.SetDefault("service.replace_order", string(dams.ReplaceDeleteFirst))
	v.SetDefault("service.cleanup_timeout", 30) // seconds
	v.SetDefault("service.activity", true)

	tables := dams.DefaultTables()
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "dams.db")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.tables.users", tables.Users)
	v.SetDefault("database.tables.assets", tables.Assets)
	v.SetDefault("database.tables.shares", tables.Shares)
	v.SetDefault("database.tables.activity", tables.Activity)

	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.public_url", "http://localhost:5000/files")
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("session.backend", "file")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.redis.addr", "localhost:6379")

	v.SetDefault("reconcile.schedule", "")
	v.SetDefault("reconcile.grace_period", "1h")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("DAMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
