package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hvacsched/internal/model"
)

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.apply(t, Create{Schedule: mondaySeries()})

	doc := h.eng.Export()
	assert.Len(t, doc.Schedules, 2)
	assert.Equal(t, 2, doc.Metadata.Total)
	assert.Equal(t, model.DocumentVersion, doc.Metadata.Version)
	assert.Equal(t, "2025-01-01T10:00:00Z", doc.Metadata.ExportedAt)
}

func TestImportReplacesAndKeepsDefault(t *testing.T) {
	h := newHarness(t)
	h.apply(t, Create{Schedule: mondaySeries()})

	incoming := oneTime("Party", "2025-05-01", "18:00", "23:00")
	incoming.ID = "party"
	res := h.apply(t, Import{Schedules: []model.Schedule{incoming, mondaySeries()}})

	got := h.eng.Schedules()
	require.Len(t, got, 3)
	assert.True(t, got[0].IsDefault)
	assert.Equal(t, "party", got[1].ID)
	assert.NotEmpty(t, got[2].ID)
	assert.Equal(t, "2025-05-01", got[1].EndDate)
	assert.Len(t, res.Changed, 3)
	assert.Equal(t, "import", h.changes[len(h.changes)-1].Action)
}

func TestImportUsesSuppliedDefault(t *testing.T) {
	h := newHarness(t)

	def := model.DefaultSchedule()
	def.Settings = model.Thermostat{SystemMode: model.ModeOff, HeatSetpoint: 60, CoolSetpoint: 85, Fan: model.FanAuto}
	h.apply(t, Import{Schedules: []model.Schedule{mondaySeries(), def}})

	got := h.eng.Schedules()
	require.Len(t, got, 2)
	assert.True(t, got[0].IsDefault)
	assert.Equal(t, model.ModeOff, got[0].Settings.(model.Thermostat).SystemMode)
}

func TestImportReportsEveryBadItem(t *testing.T) {
	h := newHarness(t)
	h.apply(t, Create{Schedule: mondaySeries()})
	before := h.eng.Schedules()

	nameless := mondaySeries()
	nameless.EventName = ""
	clash := oneTime("Clash", "2025-01-06", "09:30", "10:30")

	_, err := h.eng.Apply(context.Background(), Import{Schedules: []model.Schedule{
		mondaySeries(),
		nameless,
		clash,
	}})

	var be *BatchError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Items, 2)
	assert.Equal(t, 1, be.Items[0].Index)
	assert.Equal(t, 2, be.Items[1].Index)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "event_name", ve.Field)
	var oc *OverlapConflictError
	require.ErrorAs(t, err, &oc)
	assert.Equal(t, "2025-01-06", oc.Date)

	assert.Equal(t, before, h.eng.Schedules())
}

func TestImportRejectsDuplicateIDs(t *testing.T) {
	h := newHarness(t)
	a := oneTime("A", "2025-01-06", "08:00", "09:00")
	a.ID = "x"
	b := oneTime("B", "2025-01-07", "08:00", "09:00")
	b.ID = "x"

	_, err := h.eng.Apply(context.Background(), Import{Schedules: []model.Schedule{a, b}})
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Items[0].Index)
}
