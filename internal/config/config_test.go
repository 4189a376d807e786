package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "./user_schedule_recipe.json", cfg.Storage.Path)
	assert.Equal(t, 2, cfg.Overlap.ScanYears)
	assert.Equal(t, "hvac-device-default", cfg.Device.ID)
	assert.InDelta(t, 40.7128, cfg.Device.Location.Latitude, 1e-9)
	assert.Equal(t, "hvac/hvac-device-default/schedules", cfg.MQTT.Topic)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("storage:\n  driver: diskv\nlog:\n  level: verbose\n  format: console\ndevice:\n  id: rooftop-1\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverDiskv, cfg.Storage.Driver)
	assert.Equal(t, "./var/schedules", cfg.Storage.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rooftop-1", cfg.MQTT.ClientID)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	cfg.Backup.Cron = "0 3 * * *"
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
	assert.Error(t, Save("x.yaml", nil))
}
