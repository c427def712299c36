package device

import (
	"strconv"
	"strings"
)

// Router replies are loosely-keyed string maps with embedded unit suffixes
// ("45%", "38C", "12.1V", "10ms"). These helpers normalize them into typed
// values; a missing or malformed field reads as zero, never a failure.

func fieldFloat(m map[string]string, key string, suffixes ...string) float64 {
	s := strings.TrimSpace(m[key])
	if s == "" {
		return 0
	}
	for _, suffix := range suffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func fieldInt(m map[string]string, key string, suffixes ...string) int {
	return int(fieldFloat(m, key, suffixes...))
}

func fieldInt64(m map[string]string, key string) int64 {
	s := strings.TrimSpace(m[key])
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func fieldBool(m map[string]string, key string) bool {
	switch strings.TrimSpace(m[key]) {
	case "true", "yes":
		return true
	default:
		return false
	}
}

// parseMillis converts a RouterOS round-trip time field to milliseconds.
// Handles the "12ms" and "531us" forms; reports false when the field does
// not parse.
func parseMillis(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "ms"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case strings.HasSuffix(s, "us"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "us"), 64)
		if err != nil {
			return 0, false
		}
		return v / 1000, true
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
}
