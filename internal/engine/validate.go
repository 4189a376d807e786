package engine

import (
	"strings"

	"hvacsched/internal/model"
	"hvacsched/internal/timeutil"
)

// Setpoint limits, in degrees Fahrenheit and percent.
const (
	minHeat     = 40
	maxHeat     = 90
	minCool     = 50
	maxCool     = 99
	minDeadband = 2
	maxPercent  = 100
)

// Validate applies the per-field rules shared by create, update and import
// to a normalized schedule. The first failing field is reported.
func Validate(s model.Schedule) error {
	if s.IsDefault {
		return validateDefault(s)
	}

	if s.EventName == "" {
		return invalid("event_name", "is required")
	}
	if strings.EqualFold(s.EventName, model.DefaultScheduleName) {
		return invalid("event_name", "%q is reserved for the default schedule", model.DefaultScheduleName)
	}
	if !s.ScheduleType.Valid() {
		return invalid("schedule_type", "unknown type %q", s.ScheduleType)
	}

	switch s.RepeatFrequency {
	case model.RepeatNever, model.RepeatCustom:
	default:
		return invalid("repeat_frequency", "must be never or custom, got %q", s.RepeatFrequency)
	}
	switch s.TimeSetting {
	case model.TimeLiteral, model.TimeSunrise, model.TimeSunset:
	default:
		return invalid("time_setting", "must be time, sunrise or sunset, got %q", s.TimeSetting)
	}

	if !timeutil.IsDate(s.StartDate) {
		return invalid("start_date", "must be YYYY-MM-DD, got %q", s.StartDate)
	}
	if s.EndDate == model.EndNever {
		if s.RepeatFrequency != model.RepeatCustom {
			return invalid("end_date", "only repeating schedules may end never")
		}
	} else {
		if !timeutil.IsDate(s.EndDate) {
			return invalid("end_date", "must be YYYY-MM-DD or never, got %q", s.EndDate)
		}
		if s.EndDate < s.StartDate {
			return invalid("end_date", "%s is before start_date %s", s.EndDate, s.StartDate)
		}
	}
	if !timeutil.IsTime(s.StartTime) {
		return invalid("start_time", "must be HH:MM, got %q", s.StartTime)
	}
	if !timeutil.IsTime(s.EndTime) {
		return invalid("end_time", "must be HH:MM, got %q", s.EndTime)
	}

	if s.RepeatFrequency == model.RepeatCustom {
		if len(s.DaysOfWeek) == 0 {
			return invalid("days_of_week", "a repeating schedule needs at least one day")
		}
		for _, d := range s.DaysOfWeek {
			if _, ok := model.ParseWeekday(d); !ok {
				return invalid("days_of_week", "unknown day %q", d)
			}
		}
	}
	for _, d := range s.ExcludeDates {
		if !timeutil.IsDate(d) {
			return invalid("exclude_dates", "must be YYYY-MM-DD, got %q", d)
		}
	}

	return validateSettings(s.ScheduleType, s.Settings)
}

// validateDuration rejects windows of zero length. End before start is an
// overnight window and is allowed.
func validateDuration(s model.Schedule) error {
	d, err := timeutil.Duration(s.StartTime, s.EndTime)
	if err != nil {
		return invalid("start_time", "%v", err)
	}
	if d <= 0 {
		return &DurationError{StartTime: s.StartTime, EndTime: s.EndTime}
	}
	return nil
}

func validateDefault(s model.Schedule) error {
	if s.EventName == "" {
		return invalid("event_name", "is required")
	}
	if !s.ScheduleType.Valid() {
		return invalid("schedule_type", "unknown type %q", s.ScheduleType)
	}
	return validateSettings(s.ScheduleType, s.Settings)
}

func validateSettings(t model.ScheduleType, settings model.Settings) error {
	if settings == nil {
		return invalid("settings", "are required for %s schedules", t)
	}
	if settings.Type() != t {
		return invalid("settings", "%s settings given for a %s schedule", settings.Type(), t)
	}

	switch v := settings.(type) {
	case model.Thermostat:
		return validateThermostat(v)
	case model.Humidistat:
		return validateHumidistat(v)
	case model.Lighting:
		return validateLighting(v)
	case model.Combined:
		if err := validateThermostat(v.Thermostat); err != nil {
			return err
		}
		return validateHumidistat(v.Humidistat)
	default:
		return invalid("settings", "unsupported settings %T", settings)
	}
}

func validateThermostat(t model.Thermostat) error {
	switch t.SystemMode {
	case model.ModeHeat, model.ModeCool, model.ModeAuto, model.ModeOff:
	default:
		return invalid("settings.system_mode", "must be Heat, Cool, Auto or Off, got %q", t.SystemMode)
	}
	switch t.Fan {
	case model.FanAuto, model.FanOn, model.FanCirculate:
	default:
		return invalid("settings.fan", "must be auto, on or circulate, got %q", t.Fan)
	}
	if t.HeatSetpoint < minHeat || t.HeatSetpoint > maxHeat {
		return invalid("settings.heat_setpoint", "must be between %d and %d, got %v", minHeat, maxHeat, float64(t.HeatSetpoint))
	}
	if t.CoolSetpoint < minCool || t.CoolSetpoint > maxCool {
		return invalid("settings.cool_setpoint", "must be between %d and %d, got %v", minCool, maxCool, float64(t.CoolSetpoint))
	}
	if t.SystemMode == model.ModeAuto && t.CoolSetpoint-t.HeatSetpoint < minDeadband {
		return invalid("settings.cool_setpoint", "Auto mode needs cool at least %d above heat", minDeadband)
	}
	return nil
}

func validateHumidistat(h model.Humidistat) error {
	if h.HumiditySetpoint < 0 || h.HumiditySetpoint > maxPercent {
		return invalid("settings.humidity_setpoint", "must be between 0 and %d", maxPercent)
	}
	if h.VentilationRate < 0 || h.VentilationRate > maxPercent {
		return invalid("settings.ventilation_rate", "must be between 0 and %d", maxPercent)
	}
	return nil
}

func validateLighting(l model.Lighting) error {
	switch l.State {
	case model.LightOn, model.LightOff:
	default:
		return invalid("settings.lighting", "must be on or off, got %q", l.State)
	}
	if l.Brightness < 0 || l.Brightness > maxPercent {
		return invalid("settings.brightness", "must be between 0 and %d", maxPercent)
	}
	return nil
}
