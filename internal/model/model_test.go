package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleSettingsRoundTripByType(t *testing.T) {
	in := Schedule{
		ID:              "s1",
		EventName:       "Office",
		ScheduleType:    TypeCombined,
		RepeatFrequency: RepeatCustom,
		DaysOfWeek:      []string{"monday"},
		StartDate:       "2025-01-01",
		EndDate:         EndNever,
		StartTime:       "09:00",
		EndTime:         "17:00",
		TimeSetting:     TimeLiteral,
		ExcludeDates:    []string{},
		Settings: Combined{
			Thermostat: Thermostat{SystemMode: ModeAuto, HeatSetpoint: 68, CoolSetpoint: 74, Fan: FanAuto},
			Humidistat: Humidistat{HumiditySetpoint: 45},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	settings := raw["settings"].(map[string]any)
	assert.Equal(t, "Auto", settings["system_mode"])
	assert.EqualValues(t, 45, settings["humidity_setpoint"])
	assert.Equal(t, []any{}, raw["exclude_dates"])

	var out Schedule
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestLegacyStringSetpoints(t *testing.T) {
	raw := `{"id":"x","event_name":"Unoccupied","schedule_type":"thermostat",
		"repeat_frequency":"daily","time_setting":"all_day","start_time":null,"end_time":null,
		"settings":{"system_mode":"Heat","heat_setpoint":"65","cool_setpoint":"78","fan":"auto",
		"humidity_setpoint":"45","ventilation_rate":"0"},"days_of_week":[],"is_default":true,"exclude_dates":[]}`

	var s Schedule
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	th, ok := s.Settings.(Thermostat)
	require.True(t, ok)
	assert.Equal(t, Number(65), th.HeatSetpoint)
	assert.Equal(t, Number(78), th.CoolSetpoint)
	assert.Equal(t, "", s.StartTime)
}

func TestBadSettingValueFailsDecode(t *testing.T) {
	raw := `{"schedule_type":"humidistat","settings":{"humidity_setpoint":"lots"}}`
	var s Schedule
	assert.Error(t, json.Unmarshal([]byte(raw), &s))
}

func TestCloneIsDeep(t *testing.T) {
	s := Schedule{ExcludeDates: []string{"2025-01-01"}, DaysOfWeek: []string{"monday"}}
	c := s.Clone()
	c.ExcludeDates[0] = "changed"
	c.DaysOfWeek = append(c.DaysOfWeek, "friday")
	assert.Equal(t, "2025-01-01", s.ExcludeDates[0])
	assert.Len(t, s.DaysOfWeek, 1)
}

func TestParseWeekday(t *testing.T) {
	wd, ok := ParseWeekday("Monday")
	require.True(t, ok)
	assert.Equal(t, time.Monday, wd)

	wd, ok = ParseWeekday("thu")
	require.True(t, ok)
	assert.Equal(t, time.Thursday, wd)

	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
	assert.Equal(t, "saturday", WeekdayName(time.Saturday))
}

func TestDecodeLegacySingleScheduleDocument(t *testing.T) {
	raw := `{"event_name":"Office","schedule_type":"lighting","settings":{"lighting":"on"}}`
	doc, err := DecodeDocument([]byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Schedules, 1)
	assert.Equal(t, "1", doc.Schedules[0].ID)
	assert.Equal(t, Lighting{State: LightOn, Brightness: 100}, doc.Schedules[0].Settings)
	assert.Equal(t, DocumentVersion, doc.Metadata.Version)

	_, err = DecodeDocument([]byte(`{"foo":1}`))
	assert.Error(t, err)
}

func TestNewDocumentHasDefault(t *testing.T) {
	doc := NewDocument("2025-07-25T21:30:00Z")
	require.Len(t, doc.Schedules, 1)
	assert.True(t, doc.Schedules[0].IsDefault)
	assert.Equal(t, DefaultScheduleName, doc.Schedules[0].EventName)

	data, err := EncodeDocument(doc)
	require.NoError(t, err)
	back, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestSettingsDecodeIgnoresTypeCase(t *testing.T) {
	raw := `{"schedule_type":" Thermostat","settings":{"system_mode":"Cool","heat_setpoint":60,"cool_setpoint":74,"fan":"on"}}`
	var s Schedule
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, Thermostat{SystemMode: ModeCool, HeatSetpoint: 60, CoolSetpoint: 74, Fan: FanOn}, s.Settings)
}

func TestLightingBrightness(t *testing.T) {
	tests := []struct {
		raw  string
		want Lighting
	}{
		{`{"lighting":"on"}`, Lighting{State: LightOn, Brightness: 100}},
		{`{"lighting":"on","brightness":null}`, Lighting{State: LightOn, Brightness: 100}},
		{`{"lighting":"on","brightness":0}`, Lighting{State: LightOn, Brightness: 0}},
		{`{"lighting":"on","brightness":"35"}`, Lighting{State: LightOn, Brightness: 35}},
		{`{"lighting":"off"}`, Lighting{State: LightOff}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := DecodeSettings(TypeLighting, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	in := Schedule{ID: "l", ScheduleType: TypeLighting, Settings: Lighting{State: LightOn, Brightness: 0}}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out Schedule
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Settings, out.Settings)
}
