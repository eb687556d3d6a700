package validate

import (
	"fmt"
	"strings"

	"github.com/sstent/vo2sync-go/internal/models"
)

// MinDataPoints is the smallest series accepted for a workout.
const MinDataPoints = 10

// Workout fails when the workout has no start date.
func Workout(w *models.Workout) error {
	if w == nil {
		return fmt.Errorf("%w: no workout", models.ErrValidation)
	}
	if strings.TrimSpace(w.Date) == "" {
		return fmt.Errorf("%w: required field 'date' is missing", models.ErrValidation)
	}
	return nil
}

// Points fails for an empty or short series, for any point without a
// timestamp, and when neither power nor heart rate appears anywhere.
func Points(points []models.DataPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no data points", models.ErrValidation)
	}
	if len(points) < MinDataPoints {
		return fmt.Errorf("%w: too few data points (%d), need at least %d", models.ErrValidation, len(points), MinDataPoints)
	}

	hasPower, hasHR := false, false
	for i, p := range points {
		if !p.HasTimestamp() {
			return fmt.Errorf("%w: data point #%d has no timestamp", models.ErrValidation, i)
		}
		hasPower = hasPower || p.Power != nil
		hasHR = hasHR || p.HeartRate != nil
	}
	if !hasPower && !hasHR {
		return fmt.Errorf("%w: either power or heart rate data is required", models.ErrValidation)
	}
	return nil
}
