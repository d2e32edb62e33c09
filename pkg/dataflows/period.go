package dataflows

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var periodPattern = regexp.MustCompile(`^(\d+)(m|h|d|wk|w|mo|y)$`)

// maxPeriodStart is used for the "max" period.
var maxPeriodStart = time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)

// PeriodRange converts a period token ("1d", "5d", "1mo", "1y", "ytd", "max", ...) into a
// start/end window ending at now.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	switch p {
	case "":
		return time.Time{}, time.Time{}, fmt.Errorf("period cannot be empty")
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), now, nil
	case "max":
		return maxPeriodStart, now, nil
	}

	m := periodPattern.FindStringSubmatch(p)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported period: %s", period)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("unsupported period: %s", period)
	}

	var start time.Time
	switch m[2] {
	case "m":
		start = now.Add(-time.Duration(n) * time.Minute)
	case "h":
		start = now.Add(-time.Duration(n) * time.Hour)
	case "d":
		start = now.AddDate(0, 0, -n)
	case "w", "wk":
		start = now.AddDate(0, 0, -7*n)
	case "mo":
		start = now.AddDate(0, -n, 0)
	case "y":
		start = now.AddDate(-n, 0, 0)
	}
	return start, now, nil
}

// IntervalDuration returns the bar width of an interval token ("1m", "5m", "1h", "1d", "1wk", "1mo").
func IntervalDuration(interval string) (time.Duration, error) {
	i := strings.ToLower(strings.TrimSpace(interval))
	m := periodPattern.FindStringSubmatch(i)
	if m == nil {
		return 0, fmt.Errorf("unsupported interval: %s", interval)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported interval: %s", interval)
	}

	unit := map[string]time.Duration{
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  24 * time.Hour,
		"w":  7 * 24 * time.Hour,
		"wk": 7 * 24 * time.Hour,
		"mo": 30 * 24 * time.Hour,
		"y":  365 * 24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit, nil
}
