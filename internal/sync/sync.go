// Package sync turns uploaded files and remote activities into stored
// workouts.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/models"
	"github.com/sstent/vo2sync-go/internal/strava"
	"github.com/sstent/vo2sync-go/internal/validate"
)

// ErrRemoteNotConnected is returned by remote operations when no
// authenticated client was configured.
var ErrRemoteNotConnected = fmt.Errorf("%w: remote service not connected", models.ErrRemoteFetch)

// Store is the subset of the database the service writes through.
type Store interface {
	Save(ctx context.Context, w *models.Workout, points []models.DataPoint) (int64, error)
	ExistsBySourceKey(ctx context.Context, sourceKey string) (bool, error)
	ExistsByExternalID(ctx context.Context, externalID int64) (bool, error)
}

type FileParser interface {
	ParseFile(path string) (*models.Workout, []models.DataPoint, error)
}

type RemoteNormalizer interface {
	Normalize(ctx context.Context, id int64) (*models.Workout, []models.DataPoint, error)
}

type ActivityLister interface {
	GetActivities(ctx context.Context, perPage, page int) ([]strava.Activity, error)
}

// Options configures a SyncService. Remote and Activities may be nil when
// the remote service is not connected.
type Options struct {
	Parser     FileParser
	Remote     RemoteNormalizer
	Activities ActivityLister
	PerPage    int
	Logger     logrus.FieldLogger
}

type SyncService struct {
	db      Store
	parser  FileParser
	perPage int
	log     logrus.FieldLogger

	mu         gosync.RWMutex
	remote     RemoteNormalizer
	activities ActivityLister
}

func NewSyncService(db Store, opts Options) *SyncService {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 30
	}
	return &SyncService{
		db:         db,
		parser:     opts.Parser,
		remote:     opts.Remote,
		activities: opts.Activities,
		perPage:    opts.PerPage,
		log:        opts.Logger,
	}
}

// Connect swaps in the remote collaborators, for example after the OAuth
// flow completes while the server is running.
func (s *SyncService) Connect(remote RemoteNormalizer, activities ActivityLister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote, s.activities = remote, activities
}

func (s *SyncService) remoteDeps() (RemoteNormalizer, ActivityLister) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote, s.activities
}

// ListActivities returns a page of the athlete's remote activities.
func (s *SyncService) ListActivities(ctx context.Context, perPage, page int) ([]strava.Activity, error) {
	_, activities := s.remoteDeps()
	if activities == nil {
		return nil, ErrRemoteNotConnected
	}
	return activities.GetActivities(ctx, perPage, page)
}

// Result describes one stored workout.
type Result struct {
	WorkoutID int64  `json:"workout_id"`
	SourceKey string `json:"source_key"`
	Points    int    `json:"points"`
}

// ImportFile parses a staged upload and stores it under its original name.
// The staged file is removed once the workout is saved.
func (s *SyncService) ImportFile(ctx context.Context, staged, original string, overrides models.Overrides) (*Result, error) {
	const source = string(models.SourceFile)
	log := s.log.WithField("file", original)

	if s.parser == nil {
		return nil, errors.New("no file parser configured")
	}
	if err := validate.CheckExtension(original); err != nil {
		recordFailure(source, "validate")
		return nil, err
	}

	if err := s.checkDuplicate(ctx, original, nil); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			recordSkipped(source)
			log.Info("file already imported")
		}
		return nil, err
	}

	workout, points, err := s.parser.ParseFile(staged)
	if err != nil {
		recordFailure(source, "parse")
		log.WithError(err).Error("parsing upload failed")
		return nil, err
	}
	workout.Name = original
	workout.SourceKey = original
	workout.Source = models.SourceFile

	res, err := s.store(ctx, source, workout, points, overrides)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("unable to remove staged upload")
	}
	return res, nil
}

// ImportRemote fetches activity id from the remote service and stores it.
func (s *SyncService) ImportRemote(ctx context.Context, id int64, overrides models.Overrides) (*Result, error) {
	const source = string(models.SourceRemote)

	remote, _ := s.remoteDeps()
	if remote == nil {
		return nil, ErrRemoteNotConnected
	}

	if err := s.checkDuplicate(ctx, strava.SourceKey(id), &id); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			recordSkipped(source)
		}
		return nil, err
	}

	workout, points, err := remote.Normalize(ctx, id)
	if err != nil {
		stage := "normalize"
		if errors.Is(err, models.ErrRemoteFetch) {
			stage = "fetch"
		}
		recordFailure(source, stage)
		return nil, err
	}

	return s.store(ctx, source, workout, points, overrides)
}

// SyncReport summarizes one run of Sync.
type SyncReport struct {
	Seen     int           `json:"seen"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Sync imports the most recent remote activities that are not stored yet.
// A failing activity is logged and does not stop the run.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	remote, lister := s.remoteDeps()
	if remote == nil || lister == nil {
		return nil, ErrRemoteNotConnected
	}

	startTime := time.Now()
	s.log.Info("starting sync")

	activities, err := lister.GetActivities(ctx, s.perPage, 1)
	if err != nil {
		recordFailure(string(models.SourceRemote), "list")
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	report := &SyncReport{Seen: len(activities)}
	for i, activity := range activities {
		select {
		case <-ctx.Done():
			report.Duration = time.Since(startTime)
			return report, ctx.Err()
		default:
		}

		log := s.log.WithFields(logrus.Fields{
			"activity_id": activity.ID,
			"progress":    fmt.Sprintf("%d/%d", i+1, len(activities)),
		})
		if _, err := s.ImportRemote(ctx, activity.ID, models.Overrides{}); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				report.Skipped++
				continue
			}
			report.Failed++
			log.WithError(err).Error("syncing activity failed")
			continue
		}
		report.Imported++
	}

	report.Duration = time.Since(startTime)
	recordSync(time.Now())
	s.log.WithFields(logrus.Fields{
		"seen":     report.Seen,
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"duration": report.Duration.String(),
	}).Info("sync completed")
	return report, nil
}

func (s *SyncService) checkDuplicate(ctx context.Context, key string, externalID *int64) error {
	exists, err := s.db.ExistsBySourceKey(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicate, key)
	}
	if externalID == nil {
		return nil
	}
	exists, err = s.db.ExistsByExternalID(ctx, *externalID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: external id %d", models.ErrDuplicate, *externalID)
	}
	return nil
}

func (s *SyncService) store(ctx context.Context, source string, w *models.Workout, points []models.DataPoint, overrides models.Overrides) (*Result, error) {
	log := s.log.WithField("source_key", w.SourceKey)

	overrides.Apply(w)

	if err := validate.Workout(w); err != nil {
		recordFailure(source, "validate")
		log.WithError(err).Warn("workout rejected")
		return nil, err
	}
	if err := validate.Points(points); err != nil {
		recordFailure(source, "validate")
		log.WithError(err).Warn("data points rejected")
		return nil, err
	}

	id, err := s.db.Save(ctx, w, points)
	if err != nil {
		recordFailure(source, "save")
		return nil, err
	}
	recordImported(source)
	log.WithFields(logrus.Fields{"workout_id": id, "points": len(points)}).Info("workout imported")
	return &Result{WorkoutID: id, SourceKey: w.SourceKey, Points: len(points)}, nil
}
