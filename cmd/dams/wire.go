package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/config"
	"github.com/sagarc03/dams/database"
)

// openDatabase connects, optionally migrates, and validates the schema.
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Database.Config)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if migrate {
		if err = db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("connected to database", "type", cfg.Database.Type)
	return db, nil
}

func activityRecorder(cfg *config.Config, store dams.MetadataStore) dams.ActivityRecorder {
	if !cfg.Service.Activity {
		return dams.NopRecorder{}
	}
	return store
}
