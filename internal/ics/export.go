// Package ics renders the schedule set as an iCalendar feed so it can be
// subscribed to from an ordinary calendar client.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "hvacsched/internal/log"
	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// Floating local date-times: schedules carry no zone.
const floatingLayout = "20060102T150405"

const (
	propScheduleType ical.ComponentProperty = "X-HVAC-SCHEDULE-TYPE"
	propTimeSetting  ical.ComponentProperty = "X-HVAC-TIME-SETTING"
)

var byDay = [...]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Export renders every non-default schedule as a VEVENT. Series become
// weekly RRULEs with one EXDATE per excluded date. Schedules that cannot be
// rendered are logged and skipped.
func Export(schedules []model.Schedule, calName string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//hvacsched//schedules//EN")
	if calName != "" {
		cal.SetName(calName)
	}

	count := 0
	for _, s := range schedules {
		if s.IsDefault {
			continue
		}
		if err := addEvent(cal, s, now); err != nil {
			appLog.Warn("schedule skipped in calendar export", "id", s.ID, "err", err)
			continue
		}
		count++
	}
	appLog.Debug("calendar export rendered", "events", count)
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, s model.Schedule, now time.Time) error {
	day, err := timeutil.ParseDate(s.StartDate)
	if err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	startMin, err := timeutil.ParseClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	length, err := timeutil.Duration(s.StartTime, s.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	start := day.Add(time.Duration(startMin) * time.Minute)
	end := start.Add(time.Duration(length) * time.Minute)

	var rule string
	if s.RepeatFrequency == model.RepeatCustom {
		if rule, err = weeklyRule(s); err != nil {
			return err
		}
	}

	ev := cal.AddEvent(s.ID)
	ev.SetSummary(s.EventName)
	ev.SetDtStampTime(now.UTC())
	ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
	ev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))
	ev.SetProperty(ical.ComponentPropertyCategories, string(s.ScheduleType))
	ev.SetProperty(propScheduleType, string(s.ScheduleType))
	ev.SetProperty(propTimeSetting, string(s.TimeSetting))

	if rule == "" {
		return nil
	}
	ev.AddProperty(ical.ComponentPropertyRrule, rule)
	for _, d := range s.ExcludeDates {
		ex, err := timeutil.ParseDate(d)
		if err != nil {
			continue
		}
		ev.AddProperty(ical.ComponentPropertyExdate, ex.Add(time.Duration(startMin)*time.Minute).Format(floatingLayout))
	}
	return nil
}

func weeklyRule(s model.Schedule) (string, error) {
	days := make([]string, 0, len(s.DaysOfWeek))
	for _, name := range s.DaysOfWeek {
		wd, ok := model.ParseWeekday(name)
		if !ok {
			return "", fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, byDay[wd])
	}
	if len(days) == 0 {
		return "", fmt.Errorf("series has no days")
	}

	rule := "FREQ=WEEKLY;BYDAY=" + strings.Join(days, ",")
	if !s.Unbounded() {
		until, err := timeutil.ParseDate(s.EndDate)
		if err != nil {
			return "", fmt.Errorf("end_date: %w", err)
		}
		rule += ";UNTIL=" + until.Add(24*time.Hour-time.Second).Format(floatingLayout)
	}
	return rule, nil
}
