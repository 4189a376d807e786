// Package solar supplies the sunrise/sunset lookup used to place solar
// schedules on the wall clock.
package solar

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Fallbacks for dates with no sunrise or sunset (polar day/night).
const (
	fallbackSunrise = 6 * 60
	fallbackSunset  = 18 * 60
)

// Calculator computes solar events for a fixed site.
type Calculator struct {
	Latitude  float64
	Longitude float64
	// Location is the zone the minute-of-day is reported in. Nil means time.Local.
	Location *time.Location
}

// Event returns the local minute-of-day of sunrise (isSunrise) or sunset
// on the calendar date of date.
func (c Calculator) Event(date time.Time, isSunrise bool) int {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}

	rise, set := sunrise.SunriseSunset(c.Latitude, c.Longitude, date.Year(), date.Month(), date.Day())
	t, fallback := set, fallbackSunset
	if isSunrise {
		t, fallback = rise, fallbackSunrise
	}
	if t.IsZero() {
		return fallback
	}

	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}
