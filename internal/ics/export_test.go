package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hvacsched/internal/model"
)

func TestExport(t *testing.T) {
	schedules := []model.Schedule{
		model.DefaultSchedule(),
		{
			ID:              "office",
			EventName:       "Office hours",
			ScheduleType:    model.TypeThermostat,
			RepeatFrequency: model.RepeatCustom,
			DaysOfWeek:      []string{"monday", "wednesday"},
			StartDate:       "2025-01-01",
			EndDate:         "2025-03-31",
			StartTime:       "09:00",
			EndTime:         "10:00",
			TimeSetting:     model.TimeLiteral,
			ExcludeDates:    []string{"2025-01-13"},
		},
		{
			ID:              "night",
			EventName:       "Night setback",
			ScheduleType:    model.TypeLighting,
			RepeatFrequency: model.RepeatNever,
			StartDate:       "2025-02-01",
			EndDate:         "2025-02-01",
			StartTime:       "22:30",
			EndTime:         "01:00",
			TimeSetting:     model.TimeLiteral,
		},
		{ID: "broken", EventName: "Broken", RepeatFrequency: model.RepeatNever, StartDate: "soon"},
	}

	out := Export(schedules, "Lobby", time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2, "default and unrenderable schedules are skipped")

	office := events[0]
	assert.Equal(t, "office", office.Id())
	assert.Equal(t, "Office hours", office.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "20250101T090000", office.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "20250101T100000", office.GetProperty(ical.ComponentPropertyDtEnd).Value)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20250331T235959", office.GetProperty(ical.ComponentPropertyRrule).Value)
	assert.Equal(t, "20250113T090000", office.GetProperty(ical.ComponentPropertyExdate).Value)
	assert.Equal(t, "thermostat", office.GetProperty(propScheduleType).Value)

	night := events[1]
	assert.Equal(t, "20250201T223000", night.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "20250202T010000", night.GetProperty(ical.ComponentPropertyDtEnd).Value)
	assert.Nil(t, night.GetProperty(ical.ComponentPropertyRrule))
}

func TestWeeklyRuleUnbounded(t *testing.T) {
	rule, err := weeklyRule(model.Schedule{DaysOfWeek: []string{"sunday", "sat"}, EndDate: model.EndNever})
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=SU,SA", rule)

	_, err = weeklyRule(model.Schedule{DaysOfWeek: []string{}})
	assert.Error(t, err)
}
