// Package database provides a unified interface for connecting to metadata backends.
//
// # Supported Backends
//
//   - PostgreSQL: Production backend using a pgx connection pool
//   - SQLite: Lightweight backend for development and single-node deployments
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "dams.db",
//	    Tables: dams.DefaultTables(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	repo := db.GetRepo()
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
