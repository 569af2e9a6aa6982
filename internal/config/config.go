package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string

	DatabasePath            string
	DatabaseMaxOpenConns    int
	DatabaseConnMaxLifetime time.Duration

	RequestTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	RecoveryInitial      time.Duration
	RecoveryMax          time.Duration
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path            string `yaml:"path"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		RecoveryInitial      string `yaml:"recovery_initial"`
		RecoveryMax          string `yaml:"recovery_max"`
	} `yaml:"lifecycle"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// PORT and DATABASE_PATH env vars override the file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.DatabasePath = strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = strings.TrimSpace(fc.Database.Path)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join("Resources", "hawaii.sqlite")
	}
	cfg.DatabaseMaxOpenConns = fc.Database.MaxOpenConns
	if cfg.DatabaseMaxOpenConns == 0 {
		cfg.DatabaseMaxOpenConns = 4
	}
	cfg.DatabaseConnMaxLifetime = parseDurationOrZero(fc.Database.ConnMaxLifetime, 0)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.RecoveryInitial = parseDuration(fc.Lifecycle.RecoveryInitial, time.Minute)
	cfg.RecoveryMax = parseDuration(fc.Lifecycle.RecoveryMax, 13*time.Minute)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.DatabaseMaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative, got %d", cfg.DatabaseMaxOpenConns)
	}
	if cfg.DatabaseConnMaxLifetime < 0 {
		return fmt.Errorf("database.conn_max_lifetime must not be negative")
	}
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("lifecycle.overload_threshold_pct must be <= 100, got %d", cfg.OverloadThresholdPct)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be <= 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.RecoveryMax < cfg.RecoveryInitial {
		return fmt.Errorf("lifecycle.recovery_max (%v) must be >= recovery_initial (%v)", cfg.RecoveryMax, cfg.RecoveryInitial)
	}
	return nil
}
