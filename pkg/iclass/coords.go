package iclass

import (
	"math"
	"strconv"
	"strings"
)

// ParseCoord parses a longitude or latitude. Empty values, the literal
// "null" (any case) and unparsable text are reported as missing.
func ParseCoord(v FlexString) (float64, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FirstCoord returns the first value that parses, or def when none does.
func FirstCoord(def float64, values ...FlexString) float64 {
	for _, v := range values {
		if f, ok := ParseCoord(v); ok {
			return f
		}
	}
	return def
}
