package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverDiskv    = "diskv"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// LogConfig controls the zap logger built at startup.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "json" (default) or "console".
	Format string `yaml:"format" json:"format"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
}

// StorageConfig selects and configures the schedule document store.
type StorageConfig struct {
	// Driver is one of file, diskv, redis, postgres.
	Driver string `yaml:"driver" json:"driver"`
	// Path is the JSON file (file driver) or base directory (diskv driver).
	Path string `yaml:"path" json:"path"`
	// Key names the document inside diskv, redis and postgres.
	Key string `yaml:"key" json:"key"`

	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

type OverlapConfig struct {
	// ScanYears is how many calendar years, starting with the current one,
	// overlap checks scan.
	ScanYears int `yaml:"scan_years" json:"scan_years"`
}

type LocationConfig struct {
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// DeviceConfig describes the controller the schedules drive. The location
// feeds sunrise/sunset resolution.
type DeviceConfig struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Location LocationConfig `yaml:"location" json:"location"`
}

type BackupConfig struct {
	// Cron is a standard 5-field cron spec; empty disables backups.
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	// Keep is how many snapshots are retained; older ones are removed.
	Keep int `yaml:"keep" json:"keep"`
}

// MQTTConfig enables change notifications when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"client_id" json:"client_id"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Topic    string `yaml:"topic" json:"topic"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the device's wall clock runs in. Schedules
	// themselves are naive local times; this only decides what "now" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	Log     LogConfig     `yaml:"log" json:"log"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Overlap OverlapConfig `yaml:"overlap" json:"overlap"`
	Device  DeviceConfig  `yaml:"device" json:"device"`
	Backup  BackupConfig  `yaml:"backup" json:"backup"`
	MQTT    MQTTConfig    `yaml:"mqtt" json:"mqtt"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Log.Level = "info"
	}
	if c.Log.Format != "console" {
		c.Log.Format = "json"
	}

	switch c.Storage.Driver {
	case DriverFile, DriverDiskv, DriverRedis, DriverPostgres:
	default:
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Path == "" {
		if c.Storage.Driver == DriverDiskv {
			c.Storage.Path = "./var/schedules"
		} else {
			c.Storage.Path = "./user_schedule_recipe.json"
		}
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "schedules"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "schedule_documents"
	}

	if c.Overlap.ScanYears <= 0 {
		c.Overlap.ScanYears = 2
	}

	if c.Device.ID == "" {
		c.Device.ID = "hvac-device-default"
	}
	if c.Device.Name == "" {
		c.Device.Name = "HVAC Controller"
	}
	if c.Device.Location.Name == "" && c.Device.Location.Latitude == 0 && c.Device.Location.Longitude == 0 {
		c.Device.Location = LocationConfig{Name: "Default Location", Latitude: 40.7128, Longitude: -74.0060}
	}

	if c.Backup.Dir == "" {
		c.Backup.Dir = "./var/backups"
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 14
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Device.ID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "hvac/" + c.Device.ID + "/schedules"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: write a default config with 0600 perms
//     (creating the parent directory) and return it.
//   - If the file exists: unmarshal it and normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory,
// fsync, chmod 0600, rename).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".hvacsched-config-*.tmp")
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to path via a temp file and rename so readers
// never observe a partial file. The final file has 0600 permissions.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
