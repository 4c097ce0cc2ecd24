package redact

import (
	"math"
	"strings"
)

// String masks the middle half of s, keeping a quarter on each side so that
// API keys remain recognizable in logs without being usable.
func String(s string) string {
	l := len(s)
	if l == 0 {
		return ""
	}

	var flag int
	if l%4 != 0 {
		flag = 1
	}

	head := int(math.Floor(float64(l) * .25))
	tail := min(int(math.Floor(float64(l)*.75))+(1&flag), l)

	return s[:head] + strings.Repeat("*", tail-head) + s[tail:]
}
