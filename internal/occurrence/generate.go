// Package occurrence expands schedules into concrete calendar occurrences
// and detects collisions between the occurrences of different schedules.
package occurrence

import (
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "hvacsched/internal/log"
	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// Window is an inclusive range of calendar dates (midnight UTC).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from two YYYY-MM-DD strings.
func NewWindow(from, to string) (Window, error) {
	start, err := timeutil.ParseDate(from)
	if err != nil {
		return Window{}, err
	}
	end, err := timeutil.ParseDate(to)
	if err != nil {
		return Window{}, err
	}
	if end.Before(start) {
		return Window{}, errors.New("window end is before window start")
	}
	return Window{Start: start, End: end}, nil
}

// Grow widens the window by the given number of days on both sides.
func (w Window) Grow(days int) Window {
	return Window{Start: w.Start.AddDate(0, 0, -days), End: w.End.AddDate(0, 0, days)}
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Generate lazily yields the occurrences s produces inside w, in date order.
//
//   - never:  one occurrence on start_date unless excluded
//   - custom: every date in the intersected range whose weekday is in
//     days_of_week and which is not excluded
//
// The default schedule yields nothing; it covers whatever no occurrence does.
// Start/end are the literal time-of-day strings. Solar offsets are only
// resolved for presentation (see Resolve).
func Generate(s model.Schedule, w Window) iter.Seq[model.Occurrence] {
	return func(yield func(model.Occurrence) bool) {
		if s.IsDefault {
			return
		}
		lo, hi, ok := bounds(s, w)
		if !ok {
			return
		}

		// One occurrence per (schedule, date), whatever the rule produces.
		seen := make(map[string]struct{})
		emit := func(day time.Time) bool {
			date := timeutil.ToDateString(day)
			if _, dup := seen[date]; dup {
				return true
			}
			seen[date] = struct{}{}
			return yield(model.Occurrence{
				ScheduleID:  s.ID,
				EventName:   s.EventName,
				InstanceKey: model.InstanceKey(s.ID, date),
				Date:        date,
				StartTime:   s.StartTime,
				EndTime:     s.EndTime,
			})
		}

		switch s.RepeatFrequency {
		case model.RepeatNever:
			day, err := timeutil.ParseDate(s.StartDate)
			if err != nil || day.Before(lo) || day.After(hi) || s.Excludes(s.StartDate) {
				return
			}
			emit(day)

		case model.RepeatCustom:
			set, err := weeklySet(s, lo, hi)
			if err != nil {
				appLog.Debug("occurrence: series yields nothing", "id", s.ID, "reason", err.Error())
				return
			}
			next := set.Iterator()
			for day, ok := next(); ok; day, ok = next() {
				if day.After(hi) {
					return
				}
				if !emit(day) {
					return
				}
			}
		}
	}
}

// Collect materializes Generate into a slice.
func Collect(s model.Schedule, w Window) []model.Occurrence {
	return slices.Collect(Generate(s, w))
}

// bounds intersects the schedule's validity interval with the window.
func bounds(s model.Schedule, w Window) (lo, hi time.Time, ok bool) {
	start, err := timeutil.ParseDate(s.StartDate)
	if err != nil {
		return lo, hi, false
	}
	end := w.End
	if !s.Unbounded() {
		if end, err = timeutil.ParseDate(s.EndDate); err != nil {
			return lo, hi, false
		}
	}

	lo, hi = start, end
	if w.Start.After(lo) {
		lo = w.Start
	}
	if w.End.Before(hi) {
		hi = w.End
	}
	return lo, hi, !lo.After(hi)
}

// weeklySet builds the WEEKLY;BYDAY rule for a custom series starting at
// lo, with every exclude date registered as an EXDATE. All instants are
// midnight UTC so EXDATEs match generated instants exactly.
func weeklySet(s model.Schedule, lo, hi time.Time) (*rrule.Set, error) {
	days := make([]rrule.Weekday, 0, len(s.DaysOfWeek))
	for _, name := range s.DaysOfWeek {
		wd, ok := model.ParseWeekday(name)
		if !ok {
			continue
		}
		days = append(days, rruleWeekdays[wd])
	}
	// An empty BYDAY would make rrule fall back to the DTSTART weekday.
	if len(days) == 0 {
		return nil, errors.New("no valid days_of_week")
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: days,
		Dtstart:   lo,
		Until:     hi,
	})
	if err != nil {
		return nil, err
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range s.ExcludeDates {
		if day, err := timeutil.ParseDate(ex); err == nil {
			set.ExDate(day)
		}
	}
	return set, nil
}
