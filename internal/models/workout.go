package models

import "time"

// DateLayout is the display form every workout date is stored in.
const DateLayout = "2006-01-02 15:04:05"

// Source identifies where a workout was ingested from.
type Source string

const (
	SourceFile   Source = "file"
	SourceRemote Source = "remote"
)

// Workout contains the summary of one completed training session.
// Numeric fields are nil when the source did not report them.
type Workout struct {
	ID            int64     `json:"id"`
	Date          string    `json:"date"`
	Name          string    `json:"name"`
	Source        Source    `json:"source"`
	SourceKey     string    `json:"source_key"`
	ExternalID    *int64    `json:"external_id,omitempty"`
	TotalTime     *int      `json:"total_time,omitempty"`     // elapsed seconds
	TotalDistance *float64  `json:"total_distance,omitempty"` // meters
	AvgPower      *int      `json:"avg_power,omitempty"`      // watts
	AvgHR         *int      `json:"avg_hr,omitempty"`         // bpm
	WorkKJ        *float64  `json:"work_kj,omitempty"`
	TSS           *float64  `json:"tss,omitempty"`
	FTP           *int      `json:"ftp,omitempty"`
	MaxHR         *int      `json:"max_hr,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DataPoint is one sample of a workout's time series.
type DataPoint struct {
	Timestamp int64 `json:"timestamp"` // unix seconds, 0 when missing
	Power     *int  `json:"power,omitempty"`
	HeartRate *int  `json:"heart_rate,omitempty"`
	Cadence   *int  `json:"cadence,omitempty"`
}

// HasTimestamp reports whether the point can be stored.
func (p DataPoint) HasTimestamp() bool {
	return p.Timestamp > 0
}

// Interval mirrors a row of the intervals table. Nothing in this module
// produces intervals; the table is reserved for interval analysis and is
// cleared when its workout is deleted.
type Interval struct {
	ID           int64    `json:"id"`
	WorkoutID    int64    `json:"workout_id"`
	IntervalType string   `json:"interval_type"`
	StartTime    *int64   `json:"start_time,omitempty"`
	EndTime      *int64   `json:"end_time,omitempty"`
	Duration     *int     `json:"duration,omitempty"`
	Distance     *float64 `json:"distance,omitempty"`
	AvgPower     *int     `json:"avg_power,omitempty"`
	MaxPower     *int     `json:"max_power,omitempty"`
	AvgHR        *int     `json:"avg_hr,omitempty"`
	MaxHR        *int     `json:"max_hr,omitempty"`
	RPE          *float64 `json:"rpe,omitempty"`
	VO2MaxScore  *float64 `json:"vo2max_score,omitempty"`
}

// Overrides are athlete settings typed in by the user at import time.
// Zero means "not provided".
type Overrides struct {
	FTP   int `json:"ftp" form:"ftp"`
	MaxHR int `json:"max_hr" form:"max_hr"`
}

// Apply fills FTP and MaxHR from the overrides, but only where the
// normalizer left them unknown. A value read from the source always wins.
func (o Overrides) Apply(w *Workout) {
	if w == nil {
		return
	}
	if o.FTP > 0 && w.FTP == nil {
		w.FTP = IntPtr(o.FTP)
	}
	if o.MaxHR > 0 && w.MaxHR == nil {
		w.MaxHR = IntPtr(o.MaxHR)
	}
}

func IntPtr(v int) *int             { return &v }
func Int64Ptr(v int64) *int64       { return &v }
func Float64Ptr(v float64) *float64 { return &v }
