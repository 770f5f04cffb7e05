// Package config loads the YAML configuration shared by the server and the
// CLI. A missing file is not an error; every field has a default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/warp/attendance-engine/attendance"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type DatabaseConfig struct {
	Path string `yaml:"path"` // ":memory:" for an ephemeral database
}

// EngineConfig mirrors attendance.Rules plus orchestration knobs.
type EngineConfig struct {
	Timezone               string `yaml:"timezone"`
	BatchSize              int    `yaml:"batch_size"`
	Concurrency            int    `yaml:"concurrency"`
	DailyStatutoryMinutes  int    `yaml:"daily_statutory_minutes"`
	WeeklyStatutoryMinutes int    `yaml:"weekly_statutory_minutes"`
	NightStart             string `yaml:"night_start"`
	NightEnd               string `yaml:"night_end"`
}

type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	LookbackDays int           `yaml:"lookback_days"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "./data/attendance.db"},
		Engine: EngineConfig{
			Timezone:               "Asia/Tokyo",
			BatchSize:              attendance.DefaultBatchSize,
			Concurrency:            attendance.DefaultConcurrency,
			DailyStatutoryMinutes:  480,
			WeeklyStatutoryMinutes: 2400,
			NightStart:             "22:00",
			NightEnd:               "05:00",
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     time.Hour,
			LookbackDays: 7,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: "must be between 1 and 65535"}
	}
	if c.Database.Path == "" {
		return &ValidationError{Field: "database.path", Message: "database path is required"}
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return &ValidationError{Field: "engine.timezone", Message: err.Error()}
	}
	if c.Engine.BatchSize <= 0 {
		return &ValidationError{Field: "engine.batch_size", Message: "must be positive"}
	}
	if c.Engine.Concurrency <= 0 {
		return &ValidationError{Field: "engine.concurrency", Message: "must be positive"}
	}
	if c.Engine.DailyStatutoryMinutes <= 0 || c.Engine.WeeklyStatutoryMinutes <= 0 {
		return &ValidationError{Field: "engine.statutory_minutes", Message: "daily and weekly limits must be positive"}
	}
	if _, err := attendance.ParseClockTime(c.Engine.NightStart); err != nil {
		return &ValidationError{Field: "engine.night_start", Message: err.Error()}
	}
	if _, err := attendance.ParseClockTime(c.Engine.NightEnd); err != nil {
		return &ValidationError{Field: "engine.night_end", Message: err.Error()}
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return &ValidationError{Field: "scheduler.interval", Message: "must be positive when the scheduler is enabled"}
	}
	if c.Scheduler.LookbackDays <= 0 {
		return &ValidationError{Field: "scheduler.lookback_days", Message: "must be positive"}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return &ValidationError{Field: "log.format", Message: `must be "json" or "console"`}
	}
	return nil
}

// Rules converts the engine section. Call after Validate.
func (e EngineConfig) Rules() attendance.Rules {
	return attendance.Rules{
		DailyStatutoryMinutes:  e.DailyStatutoryMinutes,
		WeeklyStatutoryMinutes: e.WeeklyStatutoryMinutes,
		NightStart:             attendance.MustParseClockTime(e.NightStart),
		NightEnd:               attendance.MustParseClockTime(e.NightEnd),
	}
}

func (e EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(e.Timezone)
}

// Apply copies the engine section onto an engine.
func (e EngineConfig) Apply(engine *attendance.Engine) error {
	loc, err := e.Location()
	if err != nil {
		return err
	}
	engine.Rules = e.Rules()
	engine.Location = loc
	engine.BatchSize = e.BatchSize
	engine.Concurrency = e.Concurrency
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
