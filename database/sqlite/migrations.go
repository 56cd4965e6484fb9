package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/dams"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations in creation order.
func getTableMigrations(tables dams.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Users, Up: createUsersTable(tables.Users), Down: dropTable(tables.Users)},
		{TableName: tables.Assets, Up: createAssetsTable(tables.Assets), Down: dropTable(tables.Assets)},
		{TableName: tables.Shares, Up: createSharesTable(tables.Shares, tables.Assets), Down: dropTable(tables.Shares)},
		{TableName: tables.Activity, Up: createActivityTable(tables.Activity), Down: dropTable(tables.Activity)},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables dams.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables dams.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createUsersTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		err := execAll(ctx, db, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL CHECK (role IN ('admin', 'user', 'viewer')),
				created_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName)))
		if err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
		return nil
	}
}

func createAssetsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					owner_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					storage_key TEXT NOT NULL UNIQUE,
					location TEXT NOT NULL,
					mime_type TEXT NOT NULL,
					size_bytes INTEGER NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (owner_id, created_at)`,
				quoteIdentifier(fmt.Sprintf("idx_%s_owner_list", tableName)), quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at)`,
				quoteIdentifier(fmt.Sprintf("idx_%s_list", tableName)), quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create assets table: %w", err)
		}
		return nil
	}
}

func createSharesTable(tableName, assetsTable string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					asset_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
					grantee_id TEXT NOT NULL,
					created_at TEXT NOT NULL,
					PRIMARY KEY (asset_id, grantee_id)
				)
			`, quotedTable, quoteIdentifier(assetsTable)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (grantee_id, created_at)`,
				quoteIdentifier(fmt.Sprintf("idx_%s_grantee", tableName)), quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create shares table: %w", err)
		}
		return nil
	}
}

func createActivityTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					user_id TEXT NOT NULL,
					action TEXT NOT NULL,
					asset_id TEXT,
					status TEXT NOT NULL,
					message TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, created_at)`,
				quoteIdentifier(fmt.Sprintf("idx_%s_user", tableName)), quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create activity table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tableName))

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
