package database

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/vo2sync-go/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "vo2sync.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testWorkout(date, key string) *models.Workout {
	return &models.Workout{
		Date:      date,
		Name:      key,
		Source:    models.SourceFile,
		SourceKey: key,
		TotalTime: models.IntPtr(3600),
		AvgPower:  models.IntPtr(210),
		FTP:       models.IntPtr(250),
	}
}

func testPoints(n int) []models.DataPoint {
	points := make([]models.DataPoint, n)
	for i := range points {
		points[i] = models.DataPoint{
			Timestamp: 1704103200 + int64(i),
			Power:     models.IntPtr(200 + i),
		}
	}
	return points
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	w := testWorkout("2024-01-01 10:00:00", "morning.fit")
	w.TotalDistance = models.Float64Ptr(math.NaN())
	id, err := db.Save(ctx, w, testPoints(12))
	require.NoError(t, err)
	assert.Equal(t, id, w.ID)

	_, err = db.Save(ctx, testWorkout("2024-02-01 10:00:00", "later.fit"), testPoints(10))
	require.NoError(t, err)

	list, err := db.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "later.fit", list[0].SourceKey)
	assert.Equal(t, "morning.fit", list[1].SourceKey)

	got := list[1]
	assert.Equal(t, models.SourceFile, got.Source)
	assert.Equal(t, 3600, *got.TotalTime)
	assert.Equal(t, 250, *got.FTP)
	assert.Nil(t, got.TotalDistance)
	assert.Nil(t, got.MaxHR)
	assert.Nil(t, got.ExternalID)
	assert.False(t, got.CreatedAt.IsZero())

	points, err := db.DataPoints(ctx, id)
	require.NoError(t, err)
	require.Len(t, points, 12)
	assert.Equal(t, int64(1704103200), points[0].Timestamp)
	assert.Equal(t, 211, *points[11].Power)
	assert.Nil(t, points[0].HeartRate)
}

func TestSaveSkipsPointsWithoutTimestamp(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	points := testPoints(5)
	points[2].Timestamp = 0
	id, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "gaps.fit"), points)
	require.NoError(t, err)

	stored, err := db.DataPoints(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestSaveRequiresDateAndKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Save(ctx, testWorkout("", "nodate.fit"), nil)
	assert.ErrorIs(t, err, models.ErrPersistence)

	_, err = db.Save(ctx, testWorkout("2024-01-01 10:00:00", ""), nil)
	assert.ErrorIs(t, err, models.ErrPersistence)

	_, err = db.Save(ctx, nil, nil)
	assert.ErrorIs(t, err, models.ErrPersistence)

	list, err := db.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSaveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := newTestDB(t)
	cancel()

	_, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "cancelled.fit"), testPoints(10))
	assert.ErrorIs(t, err, models.ErrPersistence)

	exists, err := db.ExistsBySourceKey(context.Background(), "cancelled.fit")
	require.NoError(t, err)
	assert.False(t, exists)
}

func countRows(t *testing.T, db *SQLiteDB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&count))
	return count
}

func TestSaveRollsBackWorkoutWhenPointsTableFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.db.Exec(`ALTER TABLE data_points RENAME TO data_points_moved`)
	require.NoError(t, err)

	_, err = db.Save(ctx, testWorkout("2024-01-01 10:00:00", "orphan.fit"), testPoints(10))
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.Zero(t, countRows(t, db, "workouts"))
}

func TestSaveSkipsRejectedPoint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.db.Exec(`
	CREATE TRIGGER reject_point BEFORE INSERT ON data_points
	WHEN NEW.timestamp = 1704103205
	BEGIN
		SELECT RAISE(ABORT, 'rejected');
	END`)
	require.NoError(t, err)

	id, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "partial.fit"), testPoints(10))
	require.NoError(t, err)

	points, err := db.DataPoints(ctx, id)
	require.NoError(t, err)
	require.Len(t, points, 9)
	for _, p := range points {
		assert.NotEqual(t, int64(1704103205), p.Timestamp)
	}
}

func insertInterval(t *testing.T, db *SQLiteDB, iv models.Interval) {
	t.Helper()
	_, err := db.db.Exec(`INSERT INTO intervals (workout_id, interval_type, duration, avg_power) VALUES (?, ?, ?, ?)`,
		iv.WorkoutID, iv.IntervalType, nullInt(iv.Duration), nullInt(iv.AvgPower))
	require.NoError(t, err)
}

func TestDeleteRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "locked.fit"), testPoints(10))
	require.NoError(t, err)
	insertInterval(t, db, models.Interval{WorkoutID: id, IntervalType: "work", Duration: models.IntPtr(180)})

	_, err = db.db.Exec(`
	CREATE TRIGGER keep_workouts BEFORE DELETE ON workouts
	BEGIN
		SELECT RAISE(ABORT, 'locked');
	END`)
	require.NoError(t, err)

	deleted, err := db.Delete(ctx, id)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.False(t, deleted)

	assert.Equal(t, 1, countRows(t, db, "workouts"))
	assert.Equal(t, 10, countRows(t, db, "data_points"))
	assert.Equal(t, 1, countRows(t, db, "intervals"))
}

func TestExistsLookups(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	w := testWorkout("2024-03-02 11:30:00", "remote_999")
	w.Source = models.SourceRemote
	w.ExternalID = models.Int64Ptr(999)
	_, err := db.Save(ctx, w, testPoints(10))
	require.NoError(t, err)

	ok, err := db.ExistsBySourceKey(ctx, "remote_999")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ExistsByExternalID(ctx, 999)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ExistsByExternalID(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ExistsBySourceKey(ctx, "remote_1000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "doomed.fit"), testPoints(10))
	require.NoError(t, err)
	keep, err := db.Save(ctx, testWorkout("2024-01-02 10:00:00", "kept.fit"), testPoints(10))
	require.NoError(t, err)

	insertInterval(t, db, models.Interval{WorkoutID: id, IntervalType: "work", Duration: models.IntPtr(180), AvgPower: models.IntPtr(300)})

	deleted, err := db.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	list, err := db.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep, list[0].ID)

	for _, table := range []string{"data_points", "intervals"} {
		var count int
		require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE workout_id = ?`, id).Scan(&count))
		assert.Zero(t, count, table)
	}

	points, err := db.DataPoints(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, points, 10)

	deleted, err = db.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGetWorkout(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.Save(ctx, testWorkout("2024-01-01 10:00:00", "one.fit"), testPoints(10))
	require.NoError(t, err)

	w, err := db.GetWorkout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "one.fit", w.Name)
	assert.Equal(t, 210, *w.AvgPower)

	_, err = db.GetWorkout(ctx, id+100)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
