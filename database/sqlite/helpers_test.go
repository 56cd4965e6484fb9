package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// testTables returns table names unique to one test.
func testTables(t *testing.T) dams.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return dams.Tables{
		Users:    "users_" + suffix,
		Assets:   "assets_" + suffix,
		Shares:   "shares_" + suffix,
		Activity: "activity_" + suffix,
	}
}

// setupTestRepo creates a migrated in-memory store for one test.
func setupTestRepo(t *testing.T) dams.MetadataStore {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", testTables(t))
	require.NoError(t, err, "failed to connect")

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	t.Cleanup(func() { _ = db.Close() })

	return db.GetRepo()
}
