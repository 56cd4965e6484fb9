package postgres_test

// Migration tests validate that table migrations work correctly.
//
// Test Structure:
// - TestMigrate: Validates all tables are created with correct schemas
// - TestDropTables: Validates all tables are properly dropped
// - TestMigrate_DropTables_Integration: Validates round-trip migration
//
// Adding New Tables:
// When you add a new table to migrations.go, update these two functions:
// 1. getExpectedTableSchemas() - Add schema definition with columns/indexes/constraints
// 2. getAllTableNames() - Add table name to the list
//
// The tests will automatically validate the new table's schema.

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/database/postgres"
	"github.com/stretchr/testify/assert"
)

type tableSchema struct {
	name            string
	expectedColumns map[string]string
	expectedIndexes []string
	hasPrimaryKey   bool
	hasUnique       bool
	hasForeignKey   bool
}

// getExpectedTableSchemas returns the expected schema for all tables.
// When adding a table, add it to dams.Tables, getTableMigrations() and here.
func getExpectedTableSchemas(tables dams.Tables) []tableSchema {
	return []tableSchema{
		{
			name: tables.Users,
			expectedColumns: map[string]string{
				"id":         "text",
				"name":       "text",
				"email":      "text",
				"role":       "text",
				"created_at": "timestamp with time zone",
			},
			hasPrimaryKey: true,
		},
		{
			name: tables.Assets,
			expectedColumns: map[string]string{
				"id":          "uuid",
				"owner_id":    "text",
				"filename":    "text",
				"storage_key": "text",
				"location":    "text",
				"mime_type":   "text",
				"size_bytes":  "bigint",
				"version":     "bigint",
				"created_at":  "timestamp with time zone",
				"updated_at":  "timestamp with time zone",
			},
			expectedIndexes: []string{
				fmt.Sprintf("idx_%s_owner_list", tables.Assets),
				fmt.Sprintf("idx_%s_list", tables.Assets),
			},
			hasPrimaryKey: true,
			hasUnique:     true,
		},
		{
			name: tables.Shares,
			expectedColumns: map[string]string{
				"asset_id":   "uuid",
				"grantee_id": "text",
				"created_at": "timestamp with time zone",
			},
			expectedIndexes: []string{fmt.Sprintf("idx_%s_grantee", tables.Shares)},
			hasPrimaryKey:   true,
			hasForeignKey:   true,
		},
		{
			name: tables.Activity,
			expectedColumns: map[string]string{
				"id":         "uuid",
				"user_id":    "text",
				"action":     "text",
				"asset_id":   "uuid",
				"status":     "text",
				"message":    "text",
				"created_at": "timestamp with time zone",
			},
			expectedIndexes: []string{fmt.Sprintf("idx_%s_user", tables.Activity)},
			hasPrimaryKey:   true,
		},
	}
}

// getAllTableNames returns all table names in the order they are created.
func getAllTableNames(tables dams.Tables) []string {
	return []string{tables.Users, tables.Assets, tables.Shares, tables.Activity}
}

func verifyTableSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool, schema tableSchema) {
	t.Helper()

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, schema.name).Scan(&exists)
	assert.NoError(t, err, "failed to check table existence for %s", schema.name)
	assert.True(t, exists, "expected table %s to exist", schema.name)

	for colName, expectedType := range schema.expectedColumns {
		var dataType string
		err = pool.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		`, schema.name, colName).Scan(&dataType)
		assert.NoError(t, err, "table %s: column %s does not exist", schema.name, colName)
		assert.Equal(t, expectedType, dataType, "table %s: column %s type mismatch", schema.name, colName)
	}

	for _, indexName := range schema.expectedIndexes {
		var exists bool
		err = pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM pg_indexes
				WHERE tablename = $1 AND indexname = $2
			)
		`, schema.name, indexName).Scan(&exists)
		assert.NoError(t, err, "table %s: failed to check index %s", schema.name, indexName)
		assert.True(t, exists, "table %s: expected index %s to exist", schema.name, indexName)
	}

	if schema.hasPrimaryKey {
		var constraintType string
		err = pool.QueryRow(ctx, `
			SELECT constraint_type
			FROM information_schema.table_constraints
			WHERE table_name = $1 AND constraint_type = 'PRIMARY KEY'
		`, schema.name).Scan(&constraintType)
		assert.NoError(t, err, "table %s: primary key constraint not found", schema.name)
	}

	for constraintType, want := range map[string]bool{"UNIQUE": schema.hasUnique, "FOREIGN KEY": schema.hasForeignKey} {
		if !want {
			continue
		}
		var has bool
		err = pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.table_constraints
				WHERE table_name = $1 AND constraint_type = $2
			)
		`, schema.name, constraintType).Scan(&has)
		assert.NoError(t, err, "table %s: failed to check %s constraint", schema.name, constraintType)
		assert.True(t, has, "table %s: expected %s constraint", schema.name, constraintType)
	}
}

func verifyTableDoesNotExist(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tableName string) {
	t.Helper()

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, tableName).Scan(&exists)
	assert.NoError(t, err, "failed to check table existence for %s", tableName)
	assert.False(t, exists, "expected table %s not to exist", tableName)
}

func TestMigrate(t *testing.T) {
	t.Run("success - creates all tables with correct schemas", func(t *testing.T) {
		pool, cleanup := getIsolatedTestDatabase(t)
		defer cleanup()
		defer pool.Close()

		ctx := context.Background()
		tables := dams.DefaultTables()

		err := postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "Migrate failed")

		schemas := getExpectedTableSchemas(tables)
		for _, schema := range schemas {
			t.Run(schema.name, func(t *testing.T) {
				verifyTableSchema(t, ctx, pool, schema)
			})
		}
	})

	t.Run("idempotent - can run multiple times", func(t *testing.T) {
		pool, cleanup := getIsolatedTestDatabase(t)
		defer cleanup()
		defer pool.Close()

		ctx := context.Background()
		tables := dams.DefaultTables()

		err := postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "first Migrate failed")

		err = postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "second Migrate failed")
	})
}

func TestDropTables(t *testing.T) {
	t.Run("success - drops all existing tables", func(t *testing.T) {
		pool, cleanup := getIsolatedTestDatabase(t)
		defer cleanup()
		defer pool.Close()

		ctx := context.Background()
		tables := dams.DefaultTables()

		err := postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "Migrate failed")

		tableNames := getAllTableNames(tables)
		for _, tableName := range tableNames {
			var exists bool
			err = pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)
			`, tableName).Scan(&exists)
			assert.NoError(t, err, "failed to check table existence")
			assert.True(t, exists, "table %s should exist before drop", tableName)
		}

		err = postgres.DropTables(ctx, pool, tables)
		assert.NoError(t, err, "DropTables failed")

		for _, tableName := range tableNames {
			verifyTableDoesNotExist(t, ctx, pool, tableName)
		}
	})

	t.Run("idempotent - can drop multiple times", func(t *testing.T) {
		pool, cleanup := getIsolatedTestDatabase(t)
		defer cleanup()
		defer pool.Close()

		ctx := context.Background()
		tables := dams.DefaultTables()

		err := postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "Migrate failed")

		err = postgres.DropTables(ctx, pool, tables)
		assert.NoError(t, err, "first DropTables failed")

		err = postgres.DropTables(ctx, pool, tables)
		assert.NoError(t, err, "second DropTables failed")
	})
}

func TestMigrate_DropTables_Integration(t *testing.T) {
	t.Run("round trip - migrate, drop, migrate again", func(t *testing.T) {
		pool, cleanup := getIsolatedTestDatabase(t)
		defer cleanup()
		defer pool.Close()

		ctx := context.Background()
		tables := dams.DefaultTables()
		tableNames := getAllTableNames(tables)

		err := postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "first Migrate failed")

		for _, tableName := range tableNames {
			var exists bool
			err = pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)
			`, tableName).Scan(&exists)
			assert.NoError(t, err, "failed to check table existence")
			assert.True(t, exists, "table %s should exist after first migrate", tableName)
		}

		err = postgres.DropTables(ctx, pool, tables)
		assert.NoError(t, err, "DropTables failed")

		for _, tableName := range tableNames {
			verifyTableDoesNotExist(t, ctx, pool, tableName)
		}

		err = postgres.Migrate(ctx, pool, tables)
		assert.NoError(t, err, "second Migrate failed")

		for _, tableName := range tableNames {
			var exists bool
			err = pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)
			`, tableName).Scan(&exists)
			assert.NoError(t, err, "failed to check table existence")
			assert.True(t, exists, "table %s should exist after second migrate", tableName)
		}
	})
}
