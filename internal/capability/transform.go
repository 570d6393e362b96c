package capability

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize maps value from [min, max] onto [0, 100].
// ok is false when min >= max or value lies outside [min, max].
func Normalize(value, min, max float64) (float64, bool) {
	if !validRange(min, max) || math.IsNaN(value) || value < min || value > max {
		return 0, false
	}
	return (value - min) / (max - min) * 100, true
}

// Denormalize maps percentage from [0, 100] onto [min, max].
// ok is false when min >= max or percentage lies outside [0, 100].
func Denormalize(percentage, min, max float64) (float64, bool) {
	if !validRange(min, max) || math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		return 0, false
	}
	return min + (max-min)*percentage/100, true
}

func validRange(min, max float64) bool {
	return min < max && !math.IsInf(min, 0) && !math.IsInf(max, 0)
}

// ClampPercentage limits v to [0, 100].
func ClampPercentage(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// ToFloat coerces a native value to a number.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToBool coerces a native value to a boolean. Non-zero numbers and the
// strings "true", "on" and "1" are true.
func ToBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "1":
			return true
		}
		return false
	default:
		f, ok := ToFloat(v)
		return ok && f != 0
	}
}

// roundPercent renders a percentage as the integer the protocol expects.
func roundPercent(v float64) int {
	return int(math.Round(v))
}
