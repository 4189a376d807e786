package occurrence

import (
	"time"

	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// SunFunc returns the local minute-of-day of sunrise (or sunset) on date.
type SunFunc func(date time.Time, sunrise bool) int

// Resolve places an occurrence on the wall clock of loc. Literal schedules
// use their start/end times as-is; sunrise/sunset schedules treat them as
// offsets from the solar event of that date. A nil sun leaves solar
// schedules at their literal values.
func Resolve(occ model.Occurrence, s model.Schedule, sun SunFunc, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := timeutil.ParseDate(occ.Date)
	if err != nil {
		return start, end, err
	}
	sMin, err := timeutil.ParseClock(occ.StartTime)
	if err != nil {
		return start, end, err
	}
	eMin, err := timeutil.ParseClock(occ.EndTime)
	if err != nil {
		return start, end, err
	}

	length := timeutil.DurationMinutes(sMin, eMin)
	if s.TimeSetting.Solar() && sun != nil {
		sMin += sun(day, s.TimeSetting == model.TimeSunrise)
	}

	// time.Date normalizes minute overflow in wall-clock terms.
	start = time.Date(day.Year(), day.Month(), day.Day(), 0, sMin, 0, 0, loc)
	end = time.Date(day.Year(), day.Month(), day.Day(), 0, sMin+length, 0, 0, loc)
	return start, end, nil
}

// ActiveAt returns the schedule in effect at the wall-clock instant at: the
// first non-default schedule with an occurrence covering it, otherwise the
// default schedule. ok is false when nothing covers at and there is no
// default schedule.
func ActiveAt(schedules []model.Schedule, at time.Time, sun SunFunc) (model.Schedule, bool) {
	today := timeutil.Day(at)
	// Yesterday is included for windows that run past midnight.
	w := Window{Start: today.AddDate(0, 0, -1), End: today}

	var fallback *model.Schedule
	for i, s := range schedules {
		if s.IsDefault {
			if fallback == nil {
				fallback = &schedules[i]
			}
			continue
		}
		for occ := range Generate(s, w) {
			start, end, err := Resolve(occ, s, sun, at.Location())
			if err != nil {
				continue
			}
			if !at.Before(start) && at.Before(end) {
				return s, true
			}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return model.Schedule{}, false
}
