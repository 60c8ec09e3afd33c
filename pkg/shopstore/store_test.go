package shopstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func testNow(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-08-01T08:00:00Z")
	require.NoError(t, err)
	return ts
}

func TestOpenFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "shop.db")

	db, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(context.Background(), db))

	var journalMode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	t.Run("records schema version", func(t *testing.T) {
		var version int
		require.NoError(t, db.QueryRow(`SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&version))
		assert.Equal(t, SchemaVersion, version)
	})

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(context.Background(), db))
		require.NoError(t, Migrate(context.Background(), db))

		var version int
		require.NoError(t, db.QueryRow(`SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&version))
		assert.Equal(t, SchemaVersion, version)
	})

	t.Run("creates all tables", func(t *testing.T) {
		for _, table := range []string{"powders", "jobs", "spray_batches", "spray_batch_jobs", "powder_usage"} {
			var name string
			err := db.QueryRow(
				`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
			require.NoError(t, err, "table %s should exist", table)
		}
	})

	t.Run("nil db rejected", func(t *testing.T) {
		require.Error(t, Migrate(context.Background(), nil))
	})
}

func TestTimeRoundTrip(t *testing.T) {
	now := testNow(t)

	parsed, err := parseDBTime(fmtTime(now))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))

	t.Run("optional nil", func(t *testing.T) {
		out, err := parseOptionalDBTime(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("legacy datetime format", func(t *testing.T) {
		out, err := parseDBTime("2026-08-01 08:00:00")
		require.NoError(t, err)
		assert.Equal(t, 2026, out.Year())
	})
}
