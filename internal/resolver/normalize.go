package resolver

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// normalize converts a raw record field into a finite float64.
// Numbers are used as-is; strings have thousands separators stripped before
// parsing. Anything else is rejected.
func normalize(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return 0, false
		}
		v = f
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case string:
		f, ok := parseNumericString(x)
		if !ok {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseNumericString parses strings like "1,358", " 77 " or "0.5".
// Literal NaN/Inf spellings and hexadecimal forms are not accepted.
func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
