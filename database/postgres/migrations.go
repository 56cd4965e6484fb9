package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/dams"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

// getTableMigrations returns all table migrations in creation order.
// Shares reference assets, so they are created after and dropped before it.
func getTableMigrations(tables dams.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Users, Up: createUsersTable(tables.Users), Down: dropTable(tables.Users)},
		{TableName: tables.Assets, Up: createAssetsTable(tables.Assets), Down: dropTable(tables.Assets)},
		{TableName: tables.Shares, Up: createSharesTable(tables.Shares, tables.Assets), Down: dropTable(tables.Shares)},
		{TableName: tables.Activity, Up: createActivityTable(tables.Activity), Down: dropTable(tables.Activity)},
	}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables dams.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables dams.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createUsersTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL CHECK (role IN ('admin', 'user', 'viewer')),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`, quotedTable)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
		return nil
	}
}

func createAssetsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexOwnerList := pgx.Identifier{fmt.Sprintf("idx_%s_owner_list", tableName)}.Sanitize()
		indexList := pgx.Identifier{fmt.Sprintf("idx_%s_list", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				owner_id TEXT NOT NULL,
				filename TEXT NOT NULL,
				storage_key TEXT NOT NULL UNIQUE,
				location TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size_bytes BIGINT NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (owner_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (created_at DESC);
		`,
			quotedTable,
			indexOwnerList, quotedTable,
			indexList, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create assets table: %w", err)
		}
		return nil
	}
}

func createSharesTable(tableName, assetsTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		quotedAssets := pgx.Identifier{assetsTable}.Sanitize()
		indexGrantee := pgx.Identifier{fmt.Sprintf("idx_%s_grantee", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				asset_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				grantee_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
				PRIMARY KEY (asset_id, grantee_id)
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (grantee_id, created_at DESC);
		`,
			quotedTable, quotedAssets,
			indexGrantee, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create shares table: %w", err)
		}
		return nil
	}
}

func createActivityTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexUser := pgx.Identifier{fmt.Sprintf("idx_%s_user", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id TEXT NOT NULL,
				action TEXT NOT NULL,
				asset_id UUID,
				status TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (user_id, created_at DESC);
		`,
			quotedTable,
			indexUser, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create activity table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
