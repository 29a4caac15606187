package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedSchemaVersion is the number of the newest migration.
// Update this when adding new migrations
const expectedSchemaVersion = 2

func TestMigrations_FreshDatabase(t *testing.T) {
	store := newTestStorage(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	for _, table := range []string{"transactions", "business_records", "allocations", "reconcile_runs", "match_outcomes"} {
		var count int
		err := store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestMigrations_Idempotency(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "twice.db")

	store, err := NewSQLiteStorage(ctx, path)
	require.NoError(t, err)
	insertRecord(t, store, "R1", "012345", "500.00", "2024-03-09")
	require.NoError(t, store.Close())

	store, err = NewSQLiteStorage(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	rec, err := store.GetBusinessRecord(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "012345", rec.BusinessKey.String())
}

func TestNewStorage_UnsupportedDriver(t *testing.T) {
	_, err := NewStorage(context.Background(), Options{Driver: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestStorage_RebindForPostgres(t *testing.T) {
	pg := &Storage{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", pg.q("a = ? AND b IN ("+placeholders(2)+")"))

	lite := &Storage{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.q("a = ?"))
}
