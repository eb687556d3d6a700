package parser

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tormoder/fit"

	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/models"
)

// Decoder turns raw activity file bytes into typed message records.
type Decoder interface {
	Decode(r io.Reader) (*Messages, error)
}

// FITDecoder decodes FIT activity files with github.com/tormoder/fit.
type FITDecoder struct{}

// fitEpoch is the FIT date_time origin. Timestamps at or before it are
// treated as missing.
var fitEpoch = time.Date(1989, time.December, 31, 0, 0, 0, 0, time.UTC)

func (FITDecoder) Decode(r io.Reader) (msgs *Messages, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			msgs, err = nil, fmt.Errorf("decoder panic: %v", rec)
		}
	}()

	fitFile, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FIT file: %w", err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return nil, fmt.Errorf("failed to get activity from FIT: %w", err)
	}

	// tormoder/fit does not surface user_profile or zones_target messages on
	// activity files, so those stay empty and manual overrides fill the gap.
	msgs = &Messages{
		Sessions: make([]SessionMesg, 0, len(activity.Sessions)),
		Records:  make([]RecordMesg, 0, len(activity.Records)),
	}
	for _, s := range activity.Sessions {
		if s == nil {
			continue
		}
		msgs.Sessions = append(msgs.Sessions, SessionMesg{
			StartTime:        validTime(s.StartTime),
			TotalElapsedTime: scaled(s.GetTotalElapsedTimeScaled()),
			TotalDistance:    scaled(s.GetTotalDistanceScaled()),
			AvgPower:         uint16Value(s.AvgPower),
			AvgHeartRate:     uint8Value(s.AvgHeartRate),
			TotalWork:        uint32Value(s.TotalWork),
		})
	}
	for _, rec := range activity.Records {
		if rec == nil {
			continue
		}
		msgs.Records = append(msgs.Records, RecordMesg{
			Timestamp: validTime(rec.Timestamp),
			Power:     uint16Value(rec.Power),
			HeartRate: uint8Value(rec.HeartRate),
			Cadence:   uint8Value(rec.Cadence),
		})
	}
	return msgs, nil
}

// FITParser reads FIT files into workouts.
type FITParser struct {
	decoder Decoder
	log     logrus.FieldLogger
}

// NewFITParser returns a parser using the given decoder, or FITDecoder when nil.
func NewFITParser(decoder Decoder, log logrus.FieldLogger) *FITParser {
	if decoder == nil {
		decoder = FITDecoder{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &FITParser{decoder: decoder, log: log}
}

// ParseFile checks the FIT header before reading the whole file.
func (p *FITParser) ParseFile(filename string) (*models.Workout, []models.DataPoint, error) {
	ft, err := DetectFileType(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", models.ErrParse, filename, err)
	}
	if ft != FileTypeFIT {
		return nil, nil, fmt.Errorf("%w: %s: invalid FIT file signature", models.ErrParse, filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", models.ErrParse, filename, err)
	}
	return p.ParseData(data)
}

// ParseData decodes and normalizes one activity file. Any decoder failure is
// returned as models.ErrParse with the decoder's message and no workout.
func (p *FITParser) ParseData(data []byte) (*models.Workout, []models.DataPoint, error) {
	if DetectFileTypeFromData(data) != FileTypeFIT {
		return nil, nil, fmt.Errorf("%w: invalid FIT file signature", models.ErrParse)
	}

	msgs, err := p.decoder.Decode(bytes.NewReader(data))
	if err != nil {
		p.log.WithError(err).Error("FIT decode failed")
		return nil, nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	workout, points := Normalize(msgs)
	if skipped := len(msgs.Records) - len(points); skipped > 0 {
		p.log.WithField("skipped", skipped).Warn("records without timestamp skipped")
	}
	return workout, points, nil
}

func validTime(t time.Time) time.Time {
	if t.IsZero() || !t.After(fitEpoch) {
		return time.Time{}
	}
	return t
}

func scaled(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return value(v)
}

func uint8Value(v uint8) *float64 {
	if v == math.MaxUint8 {
		return nil
	}
	return value(float64(v))
}

func uint16Value(v uint16) *float64 {
	if v == math.MaxUint16 {
		return nil
	}
	return value(float64(v))
}

func uint32Value(v uint32) *float64 {
	if v == math.MaxUint32 {
		return nil
	}
	return value(float64(v))
}
