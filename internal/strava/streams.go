package strava

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Stream is one channel of an activity's time series. Values stay raw so
// that a single bad entry can be dropped without failing the channel.
type Stream struct {
	Type         string            `json:"type,omitempty"`
	SeriesType   string            `json:"series_type,omitempty"`
	OriginalSize int               `json:"original_size,omitempty"`
	Resolution   string            `json:"resolution,omitempty"`
	Data         []json.RawMessage `json:"data"`
}

// UnmarshalJSON accepts either a bare array of values or an object with the
// values nested under "data".
func (s *Stream) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*s = Stream{}
		return nil
	case trimmed[0] == '[':
		var data []json.RawMessage
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return err
		}
		*s = Stream{Data: data}
		return nil
	case trimmed[0] == '{':
		type plain Stream
		var p plain
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return err
		}
		*s = Stream(p)
		return nil
	}
	return fmt.Errorf("unexpected stream shape %.20q", trimmed)
}

// Len is the number of values in the channel.
func (s Stream) Len() int { return len(s.Data) }

// At returns the raw value at i, or nil past the end of the channel.
func (s Stream) At(i int) json.RawMessage {
	if i < 0 || i >= len(s.Data) {
		return nil
	}
	return s.Data[i]
}

// StreamSet maps channel type to stream.
type StreamSet map[string]Stream

// UnmarshalJSON accepts the key_by_type object form as well as the list
// form, where each element names its own type.
func (ss *StreamSet) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Stream
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		set := make(StreamSet, len(list))
		for _, s := range list {
			if s.Type != "" {
				set[s.Type] = s
			}
		}
		*ss = set
		return nil
	}
	m := map[string]Stream{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*ss = m
	return nil
}
