package occurrence

import (
	"iter"
	"time"

	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// DefaultScanYears is the overlap scan horizon: current year plus next year.
const DefaultScanYears = 2

// Conflict describes the first pair of colliding occurrences found.
type Conflict struct {
	// Schedule is the existing schedule the candidate collides with.
	Schedule model.Schedule
	// Date is the calendar date of the existing occurrence.
	Date string

	Candidate model.Occurrence
	Existing  model.Occurrence
}

// ScanWindow returns the bounded window overlap checks run over. The
// horizon starts on January 1st of the later of now and the candidate's
// start_date and runs for the given number of years. It is then widened to
// cover every schedule involved:
//
//   - back to the earliest start_date
//   - forward to the latest bounded end_date
//   - for series ending "never", one full week past the later of their
//     start_date and their last exclude date, after which every week
//     repeats the same occurrences
//
// Series ending "never" are clipped to the window for scanning only.
func ScanWindow(now time.Time, years int, candidate model.Schedule, others ...model.Schedule) Window {
	if years < 1 {
		years = DefaultScanYears
	}
	anchor := timeutil.Day(now)
	if d, err := timeutil.ParseDate(candidate.StartDate); err == nil && d.After(anchor) {
		anchor = d
	}
	w := Window{
		Start: time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(anchor.Year()+years-1, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	w = w.cover(candidate)
	for _, s := range others {
		w = w.cover(s)
	}
	return w
}

func (w Window) cover(s model.Schedule) Window {
	if s.IsDefault {
		return w
	}
	start, err := timeutil.ParseDate(s.StartDate)
	if err != nil {
		return w
	}
	if start.Before(w.Start) {
		w.Start = start
	}

	if !s.Unbounded() {
		if d, err := timeutil.ParseDate(s.EndDate); err == nil && d.After(w.End) {
			w.End = d
		}
		return w
	}

	settled := start
	for _, ex := range s.ExcludeDates {
		if d, err := timeutil.ParseDate(ex); err == nil && d.After(settled) {
			settled = d
		}
	}
	if d := settled.AddDate(0, 0, 7); d.After(w.End) {
		w.End = d
	}
	return w
}

// Detector finds collisions between a candidate schedule and a snapshot of
// other schedules. It never touches a store: callers pass whatever
// in-memory snapshot they want checked, including hypothetical ones.
type Detector struct {
	Window Window
}

// FindConflict compares candidate against every schedule in others except
// the one whose id is excludeID, the candidate itself and the default
// schedule. The first collision wins: schedules are visited in slice order,
// candidate occurrences in date order.
//
// Occurrences are compared as half-open minute intervals on an absolute day
// axis, so a window crossing midnight also collides with the following
// day's occurrences.
func (d Detector) FindConflict(candidate model.Schedule, others []model.Schedule, excludeID string) (Conflict, bool) {
	if candidate.IsDefault {
		return Conflict{}, false
	}

	cands := spans(Generate(candidate, d.Window))
	if len(cands) == 0 {
		return Conflict{}, false
	}

	// Others are expanded one day wider so overnight spill at the window
	// edges is still seen.
	wide := d.Window.Grow(1)

	for _, other := range others {
		if other.IsDefault || other.ID == excludeID || (candidate.ID != "" && other.ID == candidate.ID) {
			continue
		}
		byDay := make(map[int]span)
		for _, sp := range spans(Generate(other, wide)) {
			byDay[sp.day] = sp
		}
		if len(byDay) == 0 {
			continue
		}

		for _, c := range cands {
			for _, day := range [...]int{c.day, c.day - 1, c.day + 1} {
				e, ok := byDay[day]
				if !ok {
					continue
				}
				if timeutil.RangesOverlap(c.start, c.end, e.start, e.end) {
					return Conflict{
						Schedule:  other,
						Date:      e.occ.Date,
						Candidate: c.occ,
						Existing:  e.occ,
					}, true
				}
			}
		}
	}
	return Conflict{}, false
}

// span is an occurrence placed on the absolute minute axis.
type span struct {
	occ        model.Occurrence
	day        int
	start, end int
}

func spans(seq iter.Seq[model.Occurrence]) []span {
	var out []span
	for occ := range seq {
		day, err := timeutil.ParseDate(occ.Date)
		if err != nil {
			continue
		}
		s, err := timeutil.ParseClock(occ.StartTime)
		if err != nil {
			continue
		}
		e, err := timeutil.ParseClock(occ.EndTime)
		if err != nil {
			continue
		}
		idx := int(day.Unix() / 86400)
		start := idx*timeutil.MinutesPerDay + s
		out = append(out, span{
			occ:   occ,
			day:   idx,
			start: start,
			end:   start + timeutil.DurationMinutes(s, e),
		})
	}
	return out
}
