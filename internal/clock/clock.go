// Package clock converts between seconds from the reference midnight and
// HH:MM:SS clock strings. Schedule times may run past 24:00:00 for overnight
// journeys.
package clock

import (
	"fmt"
	"strconv"
	"strings"
)

const Day = 24 * 3600

// Parse parses HH:MM:SS (or HH:MM) into seconds from midnight. Hours may be
// 24 or more.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM:SS", s)
	}
	limits := []int{-1, 59, 59}
	total := 0
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid clock time %q", s)
		}
		if limits[i] >= 0 && v > limits[i] {
			return 0, fmt.Errorf("invalid clock time %q: field %d out of range", s, i+1)
		}
		total = total*60 + v
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}

// Wrap folds times later than one full day back into the first day.
// Exactly 86400 is kept so the last instant of a day still reads 24:00:00.
func Wrap(sec int) int {
	if sec > Day {
		return sec % Day
	}
	return sec
}

// Format renders seconds as HH:MM:SS without wrapping.
func Format(sec int) string {
	sign := ""
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, sec/3600, (sec/60)%60, sec%60)
}

// Label is the display clock for a frame: wrapped, HH:MM:SS.
func Label(sec int) string { return Format(Wrap(sec)) }

// Stamp is Label without separators, for use in file names.
func Stamp(sec int) string { return strings.ReplaceAll(Label(sec), ":", "") }
