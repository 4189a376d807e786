package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type ScheduleType string

const (
	TypeThermostat ScheduleType = "thermostat"
	TypeHumidistat ScheduleType = "humidistat"
	TypeLighting   ScheduleType = "lighting"
	TypeCombined   ScheduleType = "thermostat+humidistat"
)

func (t ScheduleType) Valid() bool {
	switch t {
	case TypeThermostat, TypeHumidistat, TypeLighting, TypeCombined:
		return true
	}
	return false
}

type Repeat string

const (
	RepeatNever  Repeat = "never"
	RepeatCustom Repeat = "custom"
	// RepeatDaily is reserved for the default (unoccupied) schedule.
	RepeatDaily Repeat = "daily"
)

type TimeSetting string

const (
	TimeLiteral TimeSetting = "time"
	TimeSunrise TimeSetting = "sunrise"
	TimeSunset  TimeSetting = "sunset"
	// TimeAllDay is reserved for the default (unoccupied) schedule.
	TimeAllDay TimeSetting = "all_day"
)

// Solar reports whether start/end are offsets from a solar event.
func (t TimeSetting) Solar() bool {
	return t == TimeSunrise || t == TimeSunset
}

// EndNever is the end_date of a series without an end.
const EndNever = "never"

const (
	DefaultScheduleID   = "unoccupied-default"
	DefaultScheduleName = "Unoccupied"
)

// Schedule is the persisted schedule record. Dates and times are always
// kept in the canonical 4-value shape: start_date, end_date (or "never"),
// start_time, end_time.
type Schedule struct {
	ID              string       `json:"id"`
	EventName       string       `json:"event_name"`
	ScheduleType    ScheduleType `json:"schedule_type"`
	RepeatFrequency Repeat       `json:"repeat_frequency"`
	DaysOfWeek      []string     `json:"days_of_week"`
	StartDate       string       `json:"start_date,omitempty"`
	EndDate         string       `json:"end_date,omitempty"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time"`
	TimeSetting     TimeSetting  `json:"time_setting"`
	ExcludeDates    []string     `json:"exclude_dates"`
	Settings        Settings     `json:"-"`
	IsDefault       bool         `json:"is_default"`
	CreatedAt       string       `json:"created_at,omitempty"`
	UpdatedAt       string       `json:"updated_at,omitempty"`
}

type scheduleJSON Schedule

type scheduleWire struct {
	*scheduleJSON
	Settings json.RawMessage `json:"settings,omitempty"`
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	cp := scheduleJSON(s)
	if cp.DaysOfWeek == nil {
		cp.DaysOfWeek = []string{}
	}
	if cp.ExcludeDates == nil {
		cp.ExcludeDates = []string{}
	}
	w := scheduleWire{scheduleJSON: &cp}
	if s.Settings != nil {
		raw, err := json.Marshal(s.Settings)
		if err != nil {
			return nil, err
		}
		w.Settings = raw
	}
	return json.Marshal(w)
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	w := scheduleWire{scheduleJSON: (*scheduleJSON)(s)}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	settings, err := DecodeSettings(s.ScheduleType, w.Settings)
	if err != nil {
		return err
	}
	s.Settings = settings
	return nil
}

// Clone returns a deep copy; settings variants are immutable values.
func (s Schedule) Clone() Schedule {
	s.DaysOfWeek = slices.Clone(s.DaysOfWeek)
	s.ExcludeDates = slices.Clone(s.ExcludeDates)
	return s
}

// Excludes reports whether date is in exclude_dates.
func (s Schedule) Excludes(date string) bool {
	return slices.Contains(s.ExcludeDates, date)
}

// Unbounded reports whether the schedule has no end date.
func (s Schedule) Unbounded() bool {
	return s.EndDate == "" || s.EndDate == EndNever
}

// DefaultSchedule is the always-present unoccupied fallback.
func DefaultSchedule() Schedule {
	return Schedule{
		ID:              DefaultScheduleID,
		EventName:       DefaultScheduleName,
		ScheduleType:    TypeThermostat,
		RepeatFrequency: RepeatDaily,
		DaysOfWeek:      []string{},
		TimeSetting:     TimeAllDay,
		ExcludeDates:    []string{},
		Settings: Thermostat{
			SystemMode:   ModeHeat,
			HeatSetpoint: 65,
			CoolSetpoint: 78,
			Fan:          FanAuto,
		},
		IsDefault: true,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full weekday names or three-letter abbreviations,
// case-insensitively.
func ParseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if wd, ok := weekdayNames[n]; ok {
		return wd, true
	}
	if len(n) == 3 {
		for full, wd := range weekdayNames {
			if strings.HasPrefix(full, n) {
				return wd, true
			}
		}
	}
	return 0, false
}

// WeekdayName is the canonical lowercase name stored in days_of_week.
func WeekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// Occurrence is one concrete (date, start, end) instance of a schedule.
type Occurrence struct {
	ScheduleID string `json:"schedule_id"`
	EventName  string `json:"event_name"`

	// InstanceKey uniquely identifies the occurrence: schedule id + date.
	InstanceKey string `json:"instance_key"`

	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func InstanceKey(scheduleID, date string) string {
	return scheduleID + "@" + date
}
