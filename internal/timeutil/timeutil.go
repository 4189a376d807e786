// Package timeutil holds the pure date and time-of-day helpers shared by the
// occurrence generator, the overlap detector and the action engine.
//
// Schedules are naive local wall-clock values. Calendar dates are carried as
// time.Time at midnight UTC so that date arithmetic never crosses a DST
// boundary, and canonical strings are always built from the wall-clock
// components rather than through a zone-converting formatter.
package timeutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerDay = 1440

	DateLayout = "2006-01-02"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	// ErrEmpty is returned when a date or time string is blank.
	ErrEmpty = errors.New("empty value")
)

// IsDate reports whether s is a canonical YYYY-MM-DD string naming a real date.
func IsDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := ParseDate(s)
	return err == nil
}

// IsTime reports whether s is a canonical HH:MM string.
func IsTime(s string) bool {
	return timePattern.MatchString(s)
}

// ParseDate parses YYYY-MM-DD into midnight UTC of that calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Day truncates any wall-clock instant to its calendar date (midnight UTC),
// reading the year/month/day in the instant's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ToDateString renders the wall-clock date of t as YYYY-MM-DD.
func ToDateString(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ToTimeString renders the wall-clock time of t as HH:MM.
func ToTimeString(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseClock converts an HH:MM string into minutes after midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time %q: missing ':'", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q: bad hour", s)
	}
	// Tolerate a seconds component ("09:00:00") from older clients.
	mm, _, _ = strings.Cut(mm, ":")
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q: bad minute", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as HH:MM, wrapping modulo a day.
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Duration returns the minutes between two HH:MM times. An end before the
// start is a window crossing midnight. Equal times give zero.
func Duration(start, end string) (int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, err
	}
	return DurationMinutes(s, e), nil
}

// DurationMinutes is Duration on minute-of-day integers.
func DurationMinutes(start, end int) int {
	if end < start {
		return (MinutesPerDay - start) + end
	}
	return end - start
}

// AddMinutes shifts an HH:MM time, wrapping modulo 1440.
func AddMinutes(t string, minutes int) (string, error) {
	m, err := ParseClock(t)
	if err != nil {
		return "", err
	}
	return FormatClock(m + minutes), nil
}

// RangesOverlap is the half-open intersection test [s1,e1) ∩ [s2,e2) ≠ ∅.
// Touching ranges do not overlap.
func RangesOverlap(s1, e1, s2, e2 int) bool {
	return s1 < e2 && e1 > s2
}

// SplitDateTime splits a combined "YYYY-MM-DDTHH:MM[:SS]" (or space
// separated) value into its date and HH:MM parts. ok is false when s does
// not carry both parts.
func SplitDateTime(s string) (date, clock string, ok bool) {
	s = strings.TrimSpace(s)
	d, c, found := strings.Cut(s, "T")
	if !found {
		d, c, found = strings.Cut(s, " ")
	}
	if !found || !IsDate(d) {
		return "", "", false
	}
	m, err := ParseClock(c)
	if err != nil {
		return "", "", false
	}
	return d, FormatClock(m), true
}

// Weekday returns the weekday of a YYYY-MM-DD date.
func Weekday(date string) (time.Weekday, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
