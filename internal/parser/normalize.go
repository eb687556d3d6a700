package parser

import (
	"github.com/sstent/vo2sync-go/internal/models"
)

// Normalize maps decoded messages onto a workout and its data points.
//
// Session fields are last-write-wins across sessions. max_hr comes from
// user_profile and ftp from zones_target. Records without a timestamp are
// skipped; a field that does not coerce to an integer is dropped from its
// point. Name and SourceKey are left for the caller, which knows the
// upload's original file name.
func Normalize(msgs *Messages) (*models.Workout, []models.DataPoint) {
	w := &models.Workout{Source: models.SourceFile}
	if msgs == nil {
		return w, []models.DataPoint{}
	}

	for _, s := range msgs.Sessions {
		if !s.StartTime.IsZero() {
			w.Date = s.StartTime.UTC().Format(models.DateLayout)
		}
		if v := optionalInt(s.TotalElapsedTime); v != nil {
			w.TotalTime = v
		}
		if v := optionalFloat(s.TotalDistance); v != nil {
			w.TotalDistance = v
		}
		if v := optionalInt(s.AvgPower); v != nil {
			w.AvgPower = v
		}
		if v := optionalInt(s.AvgHeartRate); v != nil {
			w.AvgHR = v
		}
		if v := optionalFloat(s.TotalWork); v != nil {
			w.WorkKJ = models.Float64Ptr(*v / 1000)
		}
	}

	for _, up := range msgs.UserProfiles {
		if v := optionalInt(up.MaxHeartRate); v != nil {
			w.MaxHR = v
		}
	}
	for _, zt := range msgs.ZonesTargets {
		if v := optionalInt(zt.FunctionalThresholdPower); v != nil {
			w.FTP = v
		}
	}

	points := make([]models.DataPoint, 0, len(msgs.Records))
	for _, rec := range msgs.Records {
		if rec.Timestamp.IsZero() {
			continue
		}
		ts := rec.Timestamp.Unix()
		if ts <= 0 {
			continue
		}
		points = append(points, models.DataPoint{
			Timestamp: ts,
			Power:     optionalInt(rec.Power),
			HeartRate: optionalInt(rec.HeartRate),
			Cadence:   optionalInt(rec.Cadence),
		})
	}

	return w, points
}

func optionalInt(v *float64) *int {
	if v == nil {
		return nil
	}
	return models.OptionalInt(*v)
}

func optionalFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.OptionalFloat(*v)
}
