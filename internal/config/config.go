package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the sync engine.
type Config struct {
	DataDirectory string       `yaml:"data_directory"`
	Storage       Storage      `yaml:"storage"`
	Queue         Queue        `yaml:"queue"`
	Sync          Sync         `yaml:"sync"`
	Connectivity  Connectivity `yaml:"connectivity"`
	Update        Update       `yaml:"update"`
	Backend       Backend      `yaml:"backend"`
}

// Storage selects the durable key/value backend.
type Storage struct {
	// Driver is "file" (one JSON blob per key) or "sqlite".
	Driver string `yaml:"driver"`
}

// Queue configures the pending action queue.
type Queue struct {
	RetryCeiling int `yaml:"retry_ceiling"`
}

// Sync configures the drain coordinator.
type Sync struct {
	DeliveryTimeoutSeconds int `yaml:"delivery_timeout_seconds"`
	RetryBaseSeconds       int `yaml:"retry_base_seconds"`
	SuccessDisplaySeconds  int `yaml:"success_display_seconds"`
	HistoryLimit           int `yaml:"history_limit"`
}

// Connectivity configures the connectivity probe loop.
type Connectivity struct {
	Target          string `yaml:"target"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	FastThresholdMs int    `yaml:"fast_threshold_ms"`
	LowEndMaxCores  int    `yaml:"low_end_max_cores"`
}

// Update configures the release manifest checks.
type Update struct {
	ManifestURL          string `yaml:"manifest_url"`
	APIKey               string `yaml:"api_key"`
	CheckIntervalMinutes int    `yaml:"check_interval_minutes"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
}

// Backend configures the delivery collaborator.
type Backend struct {
	// Mode is "simulated" or "http".
	Mode        string  `yaml:"mode"`
	URL         string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	LatencyMs   int     `yaml:"latency_ms"`
	FailureRate float64 `yaml:"failure_rate"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		DataDirectory: filepath.Join(".dist", "data"),
		Storage:       Storage{Driver: "file"},
		Queue:         Queue{RetryCeiling: 5},
		Sync: Sync{
			DeliveryTimeoutSeconds: 10,
			RetryBaseSeconds:       2,
			SuccessDisplaySeconds:  5,
			HistoryLimit:           200,
		},
		Connectivity: Connectivity{
			Target:          "1.1.1.1",
			IntervalSeconds: 30,
			TimeoutSeconds:  4,
			FastThresholdMs: 200,
			LowEndMaxCores:  2,
		},
		Update: Update{
			CheckIntervalMinutes: 60,
			TimeoutSeconds:       10,
		},
		Backend: Backend{
			Mode:        "simulated",
			LatencyMs:   500,
			FailureRate: 0.1,
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	def := DefaultConfig()

	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = def.Storage.Driver
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage driver %q is not supported", c.Storage.Driver)
	}
	if c.Queue.RetryCeiling <= 0 {
		c.Queue.RetryCeiling = def.Queue.RetryCeiling
	}
	if c.Sync.DeliveryTimeoutSeconds <= 0 {
		c.Sync.DeliveryTimeoutSeconds = def.Sync.DeliveryTimeoutSeconds
	}
	if c.Sync.RetryBaseSeconds <= 0 {
		c.Sync.RetryBaseSeconds = def.Sync.RetryBaseSeconds
	}
	if c.Sync.SuccessDisplaySeconds <= 0 {
		c.Sync.SuccessDisplaySeconds = def.Sync.SuccessDisplaySeconds
	}
	if c.Sync.HistoryLimit <= 0 {
		c.Sync.HistoryLimit = def.Sync.HistoryLimit
	}
	if c.Connectivity.Target == "" {
		c.Connectivity.Target = def.Connectivity.Target
	}
	if c.Connectivity.IntervalSeconds <= 0 {
		c.Connectivity.IntervalSeconds = def.Connectivity.IntervalSeconds
	}
	if c.Connectivity.TimeoutSeconds <= 0 {
		c.Connectivity.TimeoutSeconds = def.Connectivity.TimeoutSeconds
	}
	if c.Connectivity.FastThresholdMs <= 0 {
		c.Connectivity.FastThresholdMs = def.Connectivity.FastThresholdMs
	}
	if c.Connectivity.LowEndMaxCores <= 0 {
		c.Connectivity.LowEndMaxCores = def.Connectivity.LowEndMaxCores
	}
	if c.Update.CheckIntervalMinutes <= 0 {
		c.Update.CheckIntervalMinutes = def.Update.CheckIntervalMinutes
	}
	if c.Update.TimeoutSeconds <= 0 {
		c.Update.TimeoutSeconds = def.Update.TimeoutSeconds
	}
	switch c.Backend.Mode {
	case "":
		c.Backend.Mode = def.Backend.Mode
	case "simulated":
	case "http":
		if c.Backend.URL == "" {
			return errors.New("backend mode http requires a url")
		}
	default:
		return fmt.Errorf("backend mode %q is not supported", c.Backend.Mode)
	}
	if c.Backend.LatencyMs < 0 {
		c.Backend.LatencyMs = def.Backend.LatencyMs
	}
	if c.Backend.FailureRate < 0 || c.Backend.FailureRate >= 1 {
		c.Backend.FailureRate = def.Backend.FailureRate
	}
	return nil
}
