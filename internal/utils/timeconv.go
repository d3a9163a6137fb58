package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Time spans store their window edges as seconds past midnight, matching the
// reader's wire format. These helpers convert to and from the "HH:MM" form
// the API surface uses.

const secondsPerDay = 24 * 3600

// SecondsToClock formats seconds past midnight as "HH:MM"
func SecondsToClock(seconds int) (string, error) {
	if seconds < 0 || seconds >= secondsPerDay {
		return "", fmt.Errorf("seconds %d out of range [0, 86400)", seconds)
	}
	return fmt.Sprintf("%02d:%02d", seconds/3600, (seconds%3600)/60), nil
}

// ClockToSeconds parses "HH:MM" into seconds past midnight
func ClockToSeconds(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hours*3600 + minutes*60, nil
}
