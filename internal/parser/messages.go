package parser

import "time"

// Messages is a decoded activity file grouped by the message types the
// normalizer reads. Numeric fields hold the decoder's scaled value, or nil
// when the file marked the field invalid or omitted it.
type Messages struct {
	Sessions     []SessionMesg
	UserProfiles []UserProfileMesg
	ZonesTargets []ZonesTargetMesg
	Records      []RecordMesg
}

// SessionMesg carries a session summary.
type SessionMesg struct {
	StartTime        time.Time
	TotalElapsedTime *float64 // s
	TotalDistance    *float64 // m
	AvgPower         *float64 // W
	AvgHeartRate     *float64 // bpm
	TotalWork        *float64 // J
}

// UserProfileMesg carries the athlete's profile settings.
type UserProfileMesg struct {
	MaxHeartRate *float64
}

// ZonesTargetMesg carries the athlete's training zone targets.
type ZonesTargetMesg struct {
	FunctionalThresholdPower *float64
}

// RecordMesg is one sample. A zero Timestamp means the sample had none.
type RecordMesg struct {
	Timestamp time.Time
	Power     *float64
	HeartRate *float64
	Cadence   *float64
}

func value(v float64) *float64 { return &v }
