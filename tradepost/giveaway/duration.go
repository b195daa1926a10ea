package giveaway

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDuration means the duration string did not match <count><unit>
// with a positive count.
var ErrInvalidDuration = errors.New("invalid duration, expected forms like 30s, 10m, 2h, 1d")

var durationPattern = regexp.MustCompile(`(?i)^(\d+)([smhd])$`)

// ParseDuration parses the compact giveaway duration format. Zero counts
// are rejected.
func ParseDuration(raw string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, ErrInvalidDuration
	}

	count, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || count <= 0 {
		return 0, ErrInvalidDuration
	}

	var unit time.Duration
	switch match[2] {
	case "s", "S":
		unit = time.Second
	case "m", "M":
		unit = time.Minute
	case "h", "H":
		unit = time.Hour
	case "d", "D":
		unit = 24 * time.Hour
	}
	return time.Duration(count) * unit, nil
}
