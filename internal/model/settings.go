package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Settings is the device configuration carried by a schedule. The concrete
// variant always matches the schedule_type:
//
//	thermostat            -> Thermostat
//	humidistat            -> Humidistat
//	lighting              -> Lighting
//	thermostat+humidistat -> Combined
type Settings interface {
	Type() ScheduleType
}

type SystemMode string

const (
	ModeHeat SystemMode = "Heat"
	ModeCool SystemMode = "Cool"
	ModeAuto SystemMode = "Auto"
	ModeOff  SystemMode = "Off"
)

type FanMode string

const (
	FanAuto      FanMode = "auto"
	FanOn        FanMode = "on"
	FanCirculate FanMode = "circulate"
)

type LightState string

const (
	LightOn  LightState = "on"
	LightOff LightState = "off"
)

// Number is a numeric setting. Older documents stored these as strings
// ("65"), so both JSON numbers and numeric strings are accepted.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric setting %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

type Thermostat struct {
	SystemMode   SystemMode `json:"system_mode"`
	HeatSetpoint Number     `json:"heat_setpoint"`
	CoolSetpoint Number     `json:"cool_setpoint"`
	Fan          FanMode    `json:"fan"`
}

func (Thermostat) Type() ScheduleType { return TypeThermostat }

type Humidistat struct {
	HumiditySetpoint Number `json:"humidity_setpoint"`
	VentilationRate  Number `json:"ventilation_rate"`
}

func (Humidistat) Type() ScheduleType { return TypeHumidistat }

type Lighting struct {
	State      LightState `json:"lighting"`
	Brightness Number     `json:"brightness"`
}

// lightingJSON tells an explicit brightness of 0 apart from a missing one.
type lightingJSON struct {
	State      LightState `json:"lighting"`
	Brightness *Number    `json:"brightness"`
}

func (Lighting) Type() ScheduleType { return TypeLighting }

// Combined flattens both thermostat and humidistat fields into one object.
type Combined struct {
	Thermostat
	Humidistat
}

func (Combined) Type() ScheduleType { return TypeCombined }

// DecodeSettings decodes the settings object for the given schedule type.
// The type is matched case-insensitively since forms post it before
// normalization. Empty input or an unknown type yields nil settings;
// validation reports those cases with field context.
func DecodeSettings(t ScheduleType, raw json.RawMessage) (Settings, error) {
	t = ScheduleType(strings.ToLower(strings.TrimSpace(string(t))))
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var (
		out Settings
		err error
	)
	switch t {
	case TypeThermostat:
		var v Thermostat
		err = json.Unmarshal(raw, &v)
		out = v
	case TypeHumidistat:
		var v Humidistat
		err = json.Unmarshal(raw, &v)
		out = v
	case TypeLighting:
		var w lightingJSON
		err = json.Unmarshal(raw, &w)
		v := Lighting{State: w.State}
		switch {
		case w.Brightness != nil:
			v.Brightness = *w.Brightness
		case v.State == LightOn:
			v.Brightness = 100
		}
		out = v
	case TypeCombined:
		var v Combined
		err = json.Unmarshal(raw, &v)
		out = v
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings for %s: %w", t, err)
	}
	return out, nil
}
