package engine

import (
	"slices"
	"strings"

	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// defaultLength is the length given to a window submitted without an end.
const defaultLength = 60

// Normalize brings form data into the persisted 4-value shape:
// start_date, end_date (or "never"), start_time, end_time, with no combined
// date-time strings. Values it cannot interpret are left in place for
// Validate to reject. Normalizing a normalized schedule changes nothing.
func Normalize(s model.Schedule) model.Schedule {
	s = s.Clone()
	s.EventName = strings.TrimSpace(s.EventName)
	s.ScheduleType = model.ScheduleType(strings.ToLower(strings.TrimSpace(string(s.ScheduleType))))
	s.RepeatFrequency = model.Repeat(strings.ToLower(strings.TrimSpace(string(s.RepeatFrequency))))
	s.TimeSetting = model.TimeSetting(strings.ToLower(strings.TrimSpace(string(s.TimeSetting))))
	s.DaysOfWeek = normalizeDays(s.DaysOfWeek)
	s.ExcludeDates = normalizeDates(s.ExcludeDates)

	if s.IsDefault {
		return s
	}
	if s.TimeSetting == "" {
		s.TimeSetting = model.TimeLiteral
	}

	s.StartDate, s.StartTime = splitPair(s.StartDate, s.StartTime)
	s.EndDate, s.EndTime = splitPair(s.EndDate, s.EndTime)

	if m, err := timeutil.ParseClock(s.StartTime); err == nil {
		s.StartTime = timeutil.FormatClock(m)
	}
	if m, err := timeutil.ParseClock(s.EndTime); err == nil {
		s.EndTime = timeutil.FormatClock(m)
	}
	if s.EndTime == "" && timeutil.IsTime(s.StartTime) {
		s.EndTime, _ = timeutil.AddMinutes(s.StartTime, defaultLength)
	}

	if strings.EqualFold(s.EndDate, model.EndNever) {
		s.EndDate = model.EndNever
	}
	switch s.RepeatFrequency {
	case model.RepeatNever:
		s.EndDate = s.StartDate
	case model.RepeatCustom:
		if s.EndDate == "" {
			s.EndDate = model.EndNever
		}
	}
	return s
}

// splitPair pulls a combined date-time out of either the date or the time
// field. A part that is already set is never overwritten.
func splitPair(date, clock string) (string, string) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if d, c, ok := timeutil.SplitDateTime(clock); ok {
		clock = c
		if date == "" {
			date = d
		}
	}
	if d, c, ok := timeutil.SplitDateTime(date); ok {
		date = d
		if clock == "" {
			clock = c
		}
	}
	return date, clock
}

// normalizeDays canonicalizes weekday names, drops duplicates and sorts
// them Sunday first. Unknown names are kept for Validate.
func normalizeDays(days []string) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		name := strings.ToLower(strings.TrimSpace(d))
		if wd, ok := model.ParseWeekday(name); ok {
			name = model.WeekdayName(wd)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.SortStableFunc(out, func(a, b string) int {
		return dayRank(a) - dayRank(b)
	})
	return out
}

func dayRank(name string) int {
	if wd, ok := model.ParseWeekday(name); ok {
		return int(wd)
	}
	return 7
}

func normalizeDates(dates []string) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		d = strings.TrimSpace(d)
		if day, _, ok := timeutil.SplitDateTime(d); ok {
			d = day
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
