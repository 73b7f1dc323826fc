package utilities

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

func TimeNow() time.Time {
	return time.Now().UTC()
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ParseLimit reads a page limit from a query value. Non-positive or
// unparsable values fall back to def; values above max are clamped.
func ParseLimit(raw string, def, max int) int {
	limit, err := cast.ToIntE(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// StringifyMap returns a copy of m with every value converted to a string.
// Values cast cannot convert are dropped.
func StringifyMap(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for key, val := range m {
		str, err := cast.ToStringE(val)
		if err != nil {
			continue
		}
		out[key] = str
	}
	return out
}

func DBMultiValuePlaceholders(n int) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?,", n), ","))
	b.WriteString("),")
	return strings.TrimSuffix(b.String(), ",")
}

func ContainsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
