// internal/database/models.go
package database

import (
	"context"

	"github.com/sstent/vo2sync-go/internal/models"
)

// Database is the persistence contract used by the import service and the
// HTTP API.
type Database interface {
	// Workouts
	Save(ctx context.Context, w *models.Workout, points []models.DataPoint) (int64, error)
	GetWorkout(ctx context.Context, id int64) (*models.Workout, error)
	ListAll(ctx context.Context) ([]models.Workout, error)
	Delete(ctx context.Context, id int64) (bool, error)

	// Data points
	DataPoints(ctx context.Context, workoutID int64) ([]models.DataPoint, error)

	// Dedup lookups
	ExistsBySourceKey(ctx context.Context, sourceKey string) (bool, error)
	ExistsByExternalID(ctx context.Context, externalID int64) (bool, error)

	// Close connection
	Close() error
}

var _ Database = (*SQLiteDB)(nil)
