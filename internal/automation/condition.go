package automation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultEpsilon is the tolerance used by the == operator.
const DefaultEpsilon = 0.01

// Evaluate reports whether the condition holds for a telemetry snapshot.
// A missing or non-numeric field never satisfies a condition.
func (c Condition) Evaluate(telemetry map[string]any, epsilon float64) bool {
	raw, ok := telemetry[c.Parameter]
	if !ok {
		return false
	}
	value, ok := Numeric(raw)
	if !ok {
		return false
	}
	return compare(c.Operator, value, c.Threshold, epsilon)
}

func compare(op Operator, value, threshold, epsilon float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return math.Abs(value-threshold) < epsilon
	default:
		return false
	}
}

// Numeric coerces a decoded JSON value to float64. Numbers pass through,
// numeric strings are parsed and booleans map to 1 and 0.
func Numeric(v any) (float64, bool) {
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
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
