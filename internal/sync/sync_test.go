package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/vo2sync-go/internal/models"
	"github.com/sstent/vo2sync-go/internal/strava"
)

type memStore struct {
	saved   []models.Workout
	points  map[int64][]models.DataPoint
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{points: map[int64][]models.DataPoint{}}
}

func (m *memStore) Save(_ context.Context, w *models.Workout, points []models.DataPoint) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	id := int64(len(m.saved) + 1)
	w.ID = id
	m.saved = append(m.saved, *w)
	m.points[id] = points
	return id, nil
}

func (m *memStore) ExistsBySourceKey(_ context.Context, key string) (bool, error) {
	for _, w := range m.saved {
		if w.SourceKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ExistsByExternalID(_ context.Context, id int64) (bool, error) {
	for _, w := range m.saved {
		if w.ExternalID != nil && *w.ExternalID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeParser struct {
	workout *models.Workout
	points  []models.DataPoint
	err     error
	calls   int
}

func (p *fakeParser) ParseFile(string) (*models.Workout, []models.DataPoint, error) {
	p.calls++
	if p.err != nil {
		return nil, nil, p.err
	}
	w := *p.workout
	return &w, p.points, nil
}

type fakeRemote struct {
	err   map[int64]error
	calls []int64
}

func (r *fakeRemote) Normalize(_ context.Context, id int64) (*models.Workout, []models.DataPoint, error) {
	r.calls = append(r.calls, id)
	if err := r.err[id]; err != nil {
		return nil, nil, err
	}
	return &models.Workout{
		Date:       "2024-03-02 11:30:00",
		Name:       "Ride",
		Source:     models.SourceRemote,
		SourceKey:  strava.SourceKey(id),
		ExternalID: models.Int64Ptr(id),
	}, series(10), nil
}

type fakeLister struct {
	activities []strava.Activity
	err        error
}

func (l *fakeLister) GetActivities(context.Context, int, int) ([]strava.Activity, error) {
	return l.activities, l.err
}

func series(n int) []models.DataPoint {
	points := make([]models.DataPoint, n)
	for i := range points {
		points[i] = models.DataPoint{Timestamp: 1704103200 + int64(i), HeartRate: models.IntPtr(140)}
	}
	return points
}

func stagedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.fit")
	require.NoError(t, os.WriteFile(path, []byte("fit"), 0o600))
	return path
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	parser := &fakeParser{
		workout: &models.Workout{Date: "2024-01-01 10:00:00", FTP: models.IntPtr(250)},
		points:  series(12),
	}
	svc := NewSyncService(db, Options{Parser: parser})
	before := testutil.ToFloat64(importedCounter.WithLabelValues("file"))

	staged := stagedFile(t)
	res, err := svc.ImportFile(ctx, staged, "Morning Ride.fit", models.Overrides{FTP: 200, MaxHR: 185})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.WorkoutID)
	assert.Equal(t, 12, res.Points)

	require.Len(t, db.saved, 1)
	w := db.saved[0]
	assert.Equal(t, "Morning Ride.fit", w.Name)
	assert.Equal(t, "Morning Ride.fit", w.SourceKey)
	assert.Equal(t, models.SourceFile, w.Source)
	assert.Equal(t, 250, *w.FTP)
	assert.Equal(t, 185, *w.MaxHR)

	assert.NoFileExists(t, staged)
	assert.Equal(t, before+1, testutil.ToFloat64(importedCounter.WithLabelValues("file")))

	_, err = svc.ImportFile(ctx, stagedFile(t), "Morning Ride.fit", models.Overrides{})
	assert.ErrorIs(t, err, models.ErrDuplicate)
	assert.Equal(t, 1, parser.calls)
}

func TestImportFileFailures(t *testing.T) {
	ctx := context.Background()

	svc := NewSyncService(newMemStore(), Options{Parser: &fakeParser{err: models.ErrParse}})
	staged := stagedFile(t)
	_, err := svc.ImportFile(ctx, staged, "broken.fit", models.Overrides{})
	assert.ErrorIs(t, err, models.ErrParse)
	assert.FileExists(t, staged)

	_, err = svc.ImportFile(ctx, staged, "route.gpx", models.Overrides{})
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	db := newMemStore()
	svc = NewSyncService(db, Options{Parser: &fakeParser{
		workout: &models.Workout{Date: "2024-01-01 10:00:00"},
		points:  series(5),
	}})
	_, err = svc.ImportFile(ctx, staged, "short.fit", models.Overrides{})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, db.saved)

	db.saveErr = models.ErrPersistence
	svc = NewSyncService(db, Options{Parser: &fakeParser{
		workout: &models.Workout{Date: "2024-01-01 10:00:00"},
		points:  series(10),
	}})
	_, err = svc.ImportFile(ctx, staged, "ok.fit", models.Overrides{})
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.FileExists(t, staged)
}

func TestImportRemote(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	remote := &fakeRemote{}
	svc := NewSyncService(db, Options{Remote: remote})

	res, err := svc.ImportRemote(ctx, 999, models.Overrides{FTP: 260})
	require.NoError(t, err)
	assert.Equal(t, "remote_999", res.SourceKey)
	assert.Equal(t, 260, *db.saved[0].FTP)

	_, err = svc.ImportRemote(ctx, 999, models.Overrides{})
	assert.ErrorIs(t, err, models.ErrDuplicate)
	assert.Len(t, remote.calls, 1)
}

func TestImportRemoteDedupsByExternalID(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	db.saved = append(db.saved, models.Workout{ID: 1, SourceKey: "renamed", ExternalID: models.Int64Ptr(42)})
	remote := &fakeRemote{}

	_, err := NewSyncService(db, Options{Remote: remote}).ImportRemote(ctx, 42, models.Overrides{})
	assert.ErrorIs(t, err, models.ErrDuplicate)
	assert.Empty(t, remote.calls)
}

func TestImportRemoteNotConnected(t *testing.T) {
	_, err := NewSyncService(newMemStore(), Options{}).ImportRemote(context.Background(), 1, models.Overrides{})
	assert.ErrorIs(t, err, ErrRemoteNotConnected)
	assert.ErrorIs(t, err, models.ErrRemoteFetch)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	db.saved = append(db.saved, models.Workout{ID: 1, SourceKey: "remote_3", ExternalID: models.Int64Ptr(3)})

	remote := &fakeRemote{err: map[int64]error{
		2: &strava.FetchError{Op: "getting activity 2", StatusCode: 500, Retryable: true},
	}}
	lister := &fakeLister{activities: []strava.Activity{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}}
	svc := NewSyncService(db, Options{Remote: remote, Activities: lister, PerPage: 4})

	report, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Seen)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []int64{1, 2, 4}, remote.calls)
}

func TestSyncListFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("boom")}
	svc := NewSyncService(newMemStore(), Options{Remote: &fakeRemote{}, Activities: lister})

	_, err := svc.Sync(context.Background())
	assert.Error(t, err)

	_, err = NewSyncService(newMemStore(), Options{}).Sync(context.Background())
	assert.ErrorIs(t, err, ErrRemoteNotConnected)
}

func TestConnectEnablesRemote(t *testing.T) {
	ctx := context.Background()
	svc := NewSyncService(newMemStore(), Options{})

	_, err := svc.ListActivities(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrRemoteNotConnected)

	svc.Connect(&fakeRemote{}, &fakeLister{activities: []strava.Activity{{ID: 5}}})

	activities, err := svc.ListActivities(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, activities, 1)

	report, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
}
