package utils

import (
	"fmt"
	"strconv"
)

// ParseLimit parses an optional positive count, returning def when raw is empty.
func ParseLimit(raw string, def, min, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("limit must be an integer between %d and %d", min, max)
	}
	return n, nil
}

// ParseID parses an optional positive identifier; empty yields 0.
func ParseID(name, raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}
