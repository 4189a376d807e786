package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Storage.Path = filepath.Join(dir, "schedules.json")
	cfg.Backup.Dir = filepath.Join(dir, "backups")

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const importDoc = `{
  "schedules": [
    {
      "id": "office",
      "event_name": "Office hours",
      "schedule_type": "thermostat",
      "repeat_frequency": "custom",
      "days_of_week": ["monday"],
      "start_date": "2025-01-01",
      "end_date": "never",
      "start_time": "09:00",
      "end_time": "10:00",
      "time_setting": "time",
      "exclude_dates": [],
      "settings": {"system_mode": "Heat", "heat_setpoint": 68, "cool_setpoint": 76, "fan": "auto"}
    }
  ],
  "metadata": {"version": "1.0"}
}`

func TestImportExportICS(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := filepath.Dir(cfgPath)

	in := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(in, []byte(importDoc), 0o600))

	out, err := run(t, "--config", cfgPath, "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 schedule(s)")

	exported := filepath.Join(dir, "export.json")
	_, err = run(t, "--config", cfgPath, "export", "--out", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	doc, err := model.DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Metadata.Total)
	assert.True(t, doc.Schedules[0].IsDefault)
	assert.Equal(t, "office", doc.Schedules[1].ID)

	out, err = run(t, "--config", cfgPath, "ics")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "UID:office")
}

func TestImportRejectsBadFile(t *testing.T) {
	cfgPath := writeConfig(t)
	in := filepath.Join(filepath.Dir(cfgPath), "bad.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"schedules":[{"event_name":"Unoccupied","schedule_type":"thermostat"}]}`), 0o600))

	out, err := run(t, "--config", cfgPath, "import", in)
	require.Error(t, err)
	assert.Contains(t, out, "#0")
}

func TestOccurrencesRejectsBadWindow(t *testing.T) {
	cfgPath := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "occurrences", "--from", "2025-02-01", "--to", "2025-01-01")
	assert.Error(t, err)
}
