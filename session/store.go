package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for resolving sessions.
type Config struct {
	Backend string        `mapstructure:"backend" validate:"oneof=redis file"`
	TTL     time.Duration `mapstructure:"ttl"`
	File    string        `mapstructure:"file"`   // Path to YAML file of static sessions
	Inline  []Session     `mapstructure:"inline"` // Static sessions from config
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig locates the Redis server holding sessions.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Open creates the Store selected by cfg.Backend. For the file backend,
// inline and file sessions are merged; file sessions take precedence over
// inline ones with the same ID. The returned close function releases any
// connection the store holds.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("open session store: ping redis: %w", err)
		}

		store := NewRedisStore(client, cfg.TTL)
		return store, store.Close, nil

	case "file":
		sessions := make(map[string]Session)

		for _, s := range cfg.Inline {
			if isUsable(s) {
				sessions[s.ID] = s
			}
		}

		if cfg.File != "" {
			fileSessions, err := LoadSessionsFromFile(cfg.File)
			if err != nil {
				return nil, nil, fmt.Errorf("open session store: %w", err)
			}
			for id, s := range fileSessions {
				sessions[id] = s
			}
		}

		return NewMapStore(sessions), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}
