package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/models"
)

const serviceName = "Strava"

// ActivitySource is the part of the remote API the normalizer needs.
type ActivitySource interface {
	GetActivity(ctx context.Context, id int64) (*Activity, error)
	GetActivityStreams(ctx context.Context, id int64, channels []string) (StreamSet, error)
}

// Normalizer maps a remote activity and its streams onto a workout.
type Normalizer struct {
	api ActivitySource
	now func() time.Time
	log logrus.FieldLogger
}

func NewNormalizer(api ActivitySource, log logrus.FieldLogger) *Normalizer {
	if log == nil {
		log = logger.Discard()
	}
	return &Normalizer{api: api, now: time.Now, log: log}
}

// SourceKey is the dedup key of a remote activity.
func SourceKey(id int64) string {
	return fmt.Sprintf("remote_%d", id)
}

// Normalize fetches activity id and returns its workout and data points.
//
// Fetch failures are *FetchError. Any failure while mapping returns a nil
// workout together with models.ErrParse; a workout with no points means
// the activity had no time channel.
func (n *Normalizer) Normalize(ctx context.Context, id int64) (*models.Workout, []models.DataPoint, error) {
	log := n.log.WithField("activity_id", id)

	activity, err := n.api.GetActivity(ctx, id)
	if err != nil {
		log.WithError(err).Error("activity summary unavailable")
		return nil, nil, err
	}
	if activity == nil {
		return nil, nil, &FetchError{Op: fmt.Sprintf("getting activity %d", id), Err: fmt.Errorf("empty response")}
	}

	streams, err := n.api.GetActivityStreams(ctx, id, Channels)
	if err != nil {
		log.WithError(err).Error("activity streams unavailable")
		return nil, nil, err
	}
	if streams == nil {
		return nil, nil, &FetchError{Op: fmt.Sprintf("getting streams for activity %d", id), Err: fmt.Errorf("empty response")}
	}

	workout, points, err := n.mapActivity(id, activity, streams)
	if err != nil {
		log.WithError(err).Error("activity normalization failed")
		return nil, nil, err
	}
	return workout, points, nil
}

func (n *Normalizer) mapActivity(id int64, a *Activity, streams StreamSet) (w *models.Workout, points []models.DataPoint, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			w, points, err = nil, nil, fmt.Errorf("%w: mapping activity %d: %v", models.ErrParse, id, rec)
		}
	}()

	w = n.workout(id, a)
	points, err = n.points(streams)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mapping activity %d: %v", models.ErrParse, id, err)
	}
	return w, points, nil
}

func (n *Normalizer) workout(id int64, a *Activity) *models.Workout {
	w := &models.Workout{
		Date:       n.startDate(a.StartDate),
		Name:       a.Name,
		Source:     models.SourceRemote,
		SourceKey:  SourceKey(id),
		ExternalID: models.Int64Ptr(id),
	}
	if w.Name == "" {
		w.Name = fmt.Sprintf("%s Activity %d", serviceName, id)
	}
	if a.ElapsedTime != nil {
		w.TotalTime = models.OptionalInt(*a.ElapsedTime)
	}
	if a.Distance != nil {
		w.TotalDistance = models.OptionalFloat(*a.Distance)
	}
	if a.AverageWatts != nil {
		w.AvgPower = models.OptionalInt(*a.AverageWatts)
	}
	if a.AverageHeartrate != nil {
		w.AvgHR = models.OptionalInt(*a.AverageHeartrate)
	}

	// The service-reported energy total wins over the estimate.
	switch {
	case a.Kilojoules != nil:
		w.WorkKJ = models.OptionalFloat(*a.Kilojoules)
	case a.AverageWatts != nil && a.MovingTime != nil && *a.AverageWatts > 0 && *a.MovingTime > 0:
		w.WorkKJ = models.OptionalFloat(*a.AverageWatts * *a.MovingTime / 1000)
	}
	return w
}

func (n *Normalizer) startDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		n.log.WithField("start_date", raw).Warn("unparseable start date, using current time")
		t = n.now()
	}
	return t.UTC().Format(models.DateLayout)
}

func (n *Normalizer) points(streams StreamSet) ([]models.DataPoint, error) {
	timeStream := streams[ChannelTime]
	if timeStream.Len() == 0 {
		n.log.Warn("time stream is empty, no data points generated")
		return []models.DataPoint{}, nil
	}

	hr, power, cadence := streams[ChannelHeartRate], streams[ChannelPower], streams[ChannelCadence]
	n.log.WithFields(logrus.Fields{
		"time":      timeStream.Len(),
		"heartrate": hr.Len(),
		"watts":     power.Len(),
		"cadence":   cadence.Len(),
	}).Info("building data points")

	// Streams carry offsets only, so anchor them at capture time.
	captured := n.now().Unix()
	points := make([]models.DataPoint, timeStream.Len())
	for i := range points {
		offset, ok := models.ParseInt(timeStream.At(i))
		if !ok {
			return nil, fmt.Errorf("time stream value %d is not numeric: %s", i, timeStream.At(i))
		}
		points[i] = models.DataPoint{
			Timestamp: captured + int64(offset),
			HeartRate: optionalValue(hr.At(i)),
			Power:     optionalValue(power.At(i)),
			Cadence:   optionalValue(cadence.At(i)),
		}
	}
	return points, nil
}

func optionalValue(raw json.RawMessage) *int {
	if raw == nil {
		return nil
	}
	return models.OptionalInt(raw)
}
