// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SerialConfig describes the instrument link.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ReopenDelay time.Duration `yaml:"reopen_delay"`
}

// InputConfig replaces the serial port with a captured text stream.
type InputConfig struct {
	Path     string        `yaml:"path"` // "-" reads stdin
	Interval time.Duration `yaml:"interval"`
}

// BufferConfig bounds the live time series.
type BufferConfig struct {
	Size int `yaml:"size"`
}

// RawTrafficConfig controls retention of received lines.
type RawTrafficConfig struct {
	Enable bool `yaml:"enable"`
	MaxLen int  `yaml:"max_len"`
}

// GreptimeConfig selects a GreptimeDB destination for recordings.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// RecordingConfig lists the recording destinations.
type RecordingConfig struct {
	Enable     bool           `yaml:"enable"`
	JSONLPath  string         `yaml:"jsonl_path"`
	CSVDir     string         `yaml:"csv_dir"`
	SQLitePath string         `yaml:"sqlite_path"`
	Greptime   GreptimeConfig `yaml:"greptime"`
}

// AdminConfig controls the HTTP admin surface.
type AdminConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

// ConsoleConfig bounds the operator console.
type ConsoleConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration of the monitor.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Input      InputConfig      `yaml:"input"`
	Buffer     BufferConfig     `yaml:"buffer"`
	RawTraffic RawTrafficConfig `yaml:"raw_traffic"`
	Window     string           `yaml:"window"`
	Recording  RecordingConfig  `yaml:"recording"`
	Admin      AdminConfig      `yaml:"admin"`
	Console    ConsoleConfig    `yaml:"console"`
	Log        LogConfig        `yaml:"log"`
}

const (
	DefaultBufferSize     = 5000
	DefaultRawTrafficLen  = 1000
	DefaultBaudRate       = 115200
	DefaultReadTimeout    = 100 * time.Millisecond
	DefaultReopenDelay    = time.Second
	DefaultAdminAddr      = "127.0.0.1:8080"
	DefaultConsoleEntries = 500
	DefaultGreptimeDB     = "public"
	DefaultGreptimeTable  = "instrument_samples"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

// Load loads YAML config and validates it against a CUE schema. An empty
// cueSchemaPath skips schema validation.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Recording.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		c.Recording.Greptime.Table = v
	}
}

func (c *Config) applyDefaults() {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = DefaultBaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = DefaultReadTimeout
	}
	if c.Serial.ReopenDelay == 0 {
		c.Serial.ReopenDelay = DefaultReopenDelay
	}
	if c.Buffer.Size == 0 {
		c.Buffer.Size = DefaultBufferSize
	}
	if c.RawTraffic.MaxLen == 0 {
		c.RawTraffic.MaxLen = DefaultRawTrafficLen
	}
	if c.Window == "" {
		c.Window = "raw"
	}
	if c.Recording.CSVDir == "" {
		c.Recording.CSVDir = "."
	}
	if c.Recording.Greptime.Database == "" {
		c.Recording.Greptime.Database = DefaultGreptimeDB
	}
	if c.Recording.Greptime.Table == "" {
		c.Recording.Greptime.Table = DefaultGreptimeTable
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = DefaultAdminAddr
	}
	if c.Console.MaxEntries == 0 {
		c.Console.MaxEntries = DefaultConsoleEntries
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// CSVPath resolves a CSV file name against the configured export directory.
func (c *Config) CSVPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Recording.CSVDir, name)
}
