package types

import "math"

// Argument values arrive as map[string]interface{} decoded from model
// JSON, so numbers are always float64 and the declared numeric parameter
// types of a skill have to be recovered without panicking on a bare type
// assertion.

// ExtractInt extracts an int value from an argument value.
// JSON numbers decode as float64; they convert only when integral.
// Returns (value, true) on success, (0, false) if the type is incompatible.
func ExtractInt(arg interface{}) (int, bool) {
	switch v := arg.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ExtractFloat64 extracts a float64 value from an argument value.
// Returns (value, true) on success, (0, false) if the type is incompatible.
func ExtractFloat64(arg interface{}) (float64, bool) {
	switch v := arg.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
