package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyClock   = errors.New("empty time")
	ErrInvalidClock = errors.New("invalid time")
	ErrInvalidDate  = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// NormalizeClock turns "H:MM", "HH:MM" or "HH:MM:SS" into "HH:MM:SS".
func NormalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyClock
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := parseClockPart(parts[0], 23)
	if err != nil {
		return "", fmt.Errorf("%w: %q: hour", ErrInvalidClock, s)
	}
	m, err := parseClockPart(parts[1], 59)
	if err != nil {
		return "", fmt.Errorf("%w: %q: minute", ErrInvalidClock, s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = parseClockPart(parts[2], 59)
		if err != nil {
			return "", fmt.Errorf("%w: %q: second", ErrInvalidClock, s)
		}
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
}

func parseClockPart(s string, max int) (int, error) {
	if s == "" || len(s) > 2 || !isAllDigits(s) {
		return 0, ErrInvalidClock
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > max {
		return 0, ErrInvalidClock
	}
	return v, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ShortClock drops the seconds of a normalized clock for display.
func ShortClock(clock string) string {
	if len(clock) == 8 {
		return clock[:5]
	}
	return clock
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
// A trailing time component (as some exports emit) is ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) && (s[len(dateLayout)] == 'T' || s[len(dateLayout)] == ' ') {
		s = s[:len(dateLayout)]
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }
