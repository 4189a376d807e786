package engine

import (
	"encoding/json"
	"time"

	"hvacsched/internal/model"
)

type Action string

const (
	ActionCreate             Action = "create"
	ActionUpdate             Action = "update"
	ActionDelete             Action = "delete"
	ActionDrag               Action = "drag"
	ActionResize             Action = "resize"
	ActionRemoveExcludedDate Action = "remove_excluded_date"
	ActionImport             Action = "import"
)

// Command is one user-level intent. The set of variants is closed: only
// the types in this file implement it.
type Command interface {
	Action() Action
	command()
}

// Scope selects whether a drag or resize applies to the whole series or to
// one occurrence of it.
type Scope string

const (
	ScopeSeries     Scope = "series"
	ScopeOccurrence Scope = "occurrence"
)

// Create adds a schedule built from form data. ID, IsDefault and the
// timestamps of Schedule are ignored.
type Create struct {
	Schedule model.Schedule
}

// Update merges Patch onto the schedule with ID.
type Update struct {
	ID    string
	Patch Patch
}

type Delete struct {
	ID string
}

// Drag moves a schedule so that it starts at Start, preserving duration.
// With ScopeOccurrence, OccurrenceDate names the occurrence of the series
// being carved out.
type Drag struct {
	ID             string
	Start          time.Time
	Scope          Scope
	OccurrenceDate string
}

// Resize moves the end of a schedule to End.
type Resize struct {
	ID             string
	End            time.Time
	Scope          Scope
	OccurrenceDate string
}

type RemoveExcludedDate struct {
	ID   string
	Date string
}

// Import replaces the whole schedule set.
type Import struct {
	Schedules []model.Schedule
}

func (Create) Action() Action             { return ActionCreate }
func (Update) Action() Action             { return ActionUpdate }
func (Delete) Action() Action             { return ActionDelete }
func (Drag) Action() Action               { return ActionDrag }
func (Resize) Action() Action             { return ActionResize }
func (RemoveExcludedDate) Action() Action { return ActionRemoveExcludedDate }
func (Import) Action() Action             { return ActionImport }

func (Create) command()             {}
func (Update) command()             {}
func (Delete) command()             {}
func (Drag) command()               {}
func (Resize) command()             {}
func (RemoveExcludedDate) command() {}
func (Import) command()             {}

// Patch holds the fields an update changes; nil means unchanged. Settings
// may be given already decoded or as raw JSON, which is decoded against
// the schedule type in effect after the merge.
type Patch struct {
	EventName       *string             `json:"event_name,omitempty"`
	ScheduleType    *model.ScheduleType `json:"schedule_type,omitempty"`
	RepeatFrequency *model.Repeat       `json:"repeat_frequency,omitempty"`
	DaysOfWeek      *[]string           `json:"days_of_week,omitempty"`
	StartDate       *string             `json:"start_date,omitempty"`
	EndDate         *string             `json:"end_date,omitempty"`
	StartTime       *string             `json:"start_time,omitempty"`
	EndTime         *string             `json:"end_time,omitempty"`
	TimeSetting     *model.TimeSetting  `json:"time_setting,omitempty"`
	ExcludeDates    *[]string           `json:"exclude_dates,omitempty"`

	Settings    model.Settings  `json:"-"`
	RawSettings json.RawMessage `json:"settings,omitempty"`
}

// touchesTiming reports whether the patch changes anything besides name,
// type and settings.
func (p Patch) touchesTiming() bool {
	return p.RepeatFrequency != nil || p.DaysOfWeek != nil ||
		p.StartDate != nil || p.EndDate != nil ||
		p.StartTime != nil || p.EndTime != nil ||
		p.TimeSetting != nil || p.ExcludeDates != nil
}

// apply merges the patch onto s and returns the result.
func (p Patch) apply(s model.Schedule) (model.Schedule, error) {
	if p.EventName != nil {
		s.EventName = *p.EventName
	}
	if p.ScheduleType != nil {
		s.ScheduleType = *p.ScheduleType
	}
	if p.RepeatFrequency != nil {
		s.RepeatFrequency = *p.RepeatFrequency
	}
	if p.DaysOfWeek != nil {
		s.DaysOfWeek = append([]string(nil), (*p.DaysOfWeek)...)
	}
	if p.StartDate != nil {
		s.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		s.EndDate = *p.EndDate
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	if p.TimeSetting != nil {
		s.TimeSetting = *p.TimeSetting
	}
	if p.ExcludeDates != nil {
		s.ExcludeDates = append([]string(nil), (*p.ExcludeDates)...)
	}

	switch {
	case p.Settings != nil:
		s.Settings = p.Settings
	case len(p.RawSettings) > 0:
		settings, err := model.DecodeSettings(s.ScheduleType, p.RawSettings)
		if err != nil {
			return s, invalid("settings", "%v", err)
		}
		s.Settings = settings
	}
	return s, nil
}
