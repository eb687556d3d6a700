package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseInt coerces a loosely typed numeric value to an int. Floats are
// truncated toward zero. Strings must hold an integer. Anything else,
// including nil, NaN and out of range values, reports false.
func ParseInt(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0, false
	case json.RawMessage:
		return parseRawInt(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// ParseFloat is the float64 counterpart of ParseInt.
func ParseFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.RawMessage:
		if trimmed := strings.TrimSpace(string(n)); trimmed == "" || trimmed == "null" {
			return 0, false
		}
		if err := json.Unmarshal(n, &f); err != nil {
			var s string
			if json.Unmarshal(n, &s) != nil {
				return 0, false
			}
			return ParseFloat(s)
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		i, ok := ParseInt(v)
		if !ok {
			return 0, false
		}
		f = float64(i)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// OptionalInt wraps ParseInt, returning nil when the value is unusable.
func OptionalInt(v any) *int {
	if i, ok := ParseInt(v); ok {
		return &i
	}
	return nil
}

// OptionalFloat wraps ParseFloat, returning nil when the value is unusable.
func OptionalFloat(v any) *float64 {
	if f, ok := ParseFloat(v); ok {
		return &f
	}
	return nil
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

func parseRawInt(raw json.RawMessage) (int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return ParseInt(s)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	return ParseInt(num)
}
