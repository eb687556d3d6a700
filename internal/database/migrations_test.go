package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/vo2sync-go/internal/models"
)

func TestApplyMigrationsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "vo2sync.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, ApplyMigrations(db))
	require.NoError(t, ApplyMigrations(db))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(migrations), count)

	for _, table := range []string{"workouts", "intervals", "data_points"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}

func TestApplyMigrationsUpgradesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := Open(path)
	require.NoError(t, err)

	_, err = db.Exec(`
CREATE TABLE workouts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  name TEXT NOT NULL,
  source TEXT NOT NULL,
  source_key TEXT NOT NULL,
  total_time INTEGER,
  total_distance REAL,
  avg_power INTEGER,
  avg_hr INTEGER,
  tss REAL,
  ftp INTEGER,
  max_hr INTEGER,
  work_kj REAL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
INSERT INTO workouts (date, name, source, source_key) VALUES ('2023-06-01 08:00:00', 'old.fit', 'file', 'old.fit');
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteDB(path, nil)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(1) FROM pragma_table_info('workouts') WHERE name = 'external_id'`).Scan(&n))
	assert.Equal(t, 1, n)

	ctx := context.Background()
	list, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "old.fit", list[0].SourceKey)
	assert.Nil(t, list[0].ExternalID)

	w := &models.Workout{Date: "2024-03-02 11:30:00", Name: "Ride", Source: models.SourceRemote, SourceKey: "remote_5", ExternalID: models.Int64Ptr(5)}
	_, err = store.Save(ctx, w, nil)
	require.NoError(t, err)

	ok, err := store.ExistsByExternalID(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}
