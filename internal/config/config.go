// Package config provides configuration management for golem.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/hallgrim/golem/internal/golemerr"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
	// GolemDir is the golem configuration directory.
	GolemDir = ".golem"
	// EnvPrefix namespaces environment overrides (GOLEM_*).
	EnvPrefix = "GOLEM"
)

// QueueConfig tunes the task intake queue.
type QueueConfig struct {
	// Capacity bounds the number of waiting tasks; the oldest waiting
	// task is dropped when a new one arrives at capacity.
	Capacity int `mapstructure:"capacity"`

	// TaskTimeout bounds one task's processing time.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`

	// RetryLimit is how many times a timed-out task is re-enqueued
	// before it is dropped.
	RetryLimit int `mapstructure:"retry_limit"`
}

// ActuatorConfig locates and tunes the game actuator bridge.
type ActuatorConfig struct {
	// Endpoint is the websocket URL of the actuator bridge.
	Endpoint string `mapstructure:"endpoint"`
}

// PlannerConfig locates the planning service.
type PlannerConfig struct {
	// Endpoint is the HTTP URL of the planning service.
	Endpoint string `mapstructure:"endpoint"`
}

// RecoveryConfig tunes failure handling.
type RecoveryConfig struct {
	// MaxReplanDepth bounds chained replans for one failure line.
	MaxReplanDepth int `mapstructure:"max_replan_depth"`
}

// ActionConfig tunes the per-step action pipeline.
type ActionConfig struct {
	// DefaultTarget is the fallback movement target [x, y, z].
	DefaultTarget [3]float64 `mapstructure:"default_target"`

	// SearchRadius is the default gather radius in blocks.
	SearchRadius int `mapstructure:"search_radius"`

	// GatherCount is the default number of blocks to gather.
	GatherCount int `mapstructure:"gather_count"`

	// BatchSize bounds one block-placement batch.
	BatchSize int `mapstructure:"batch_size"`

	// SnapshotMaxAgeSeconds is how stale a cached world snapshot may be.
	SnapshotMaxAgeSeconds int `mapstructure:"snapshot_max_age_seconds"`
}

// Config is the golem configuration.
type Config struct {
	// DataDir holds skills, reflections, and building checkpoints.
	DataDir string `mapstructure:"data_dir"`

	// LayoutsDir holds building blueprint YAML files.
	LayoutsDir string `mapstructure:"layouts_dir"`

	Queue    QueueConfig    `mapstructure:"queue"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Action   ActionConfig   `mapstructure:"action"`
}

// SetDefaults registers the built-in defaults on a viper instance.
// Every key has a default so a missing config file is not an error.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", GolemDir)
	v.SetDefault("layouts_dir", GolemDir+"/layouts")

	v.SetDefault("queue.capacity", 8)
	v.SetDefault("queue.task_timeout", 5*time.Minute)
	v.SetDefault("queue.retry_limit", 1)

	v.SetDefault("actuator.endpoint", "ws://127.0.0.1:3001/actuator")
	v.SetDefault("planner.endpoint", "http://127.0.0.1:3002/plan")

	v.SetDefault("recovery.max_replan_depth", 2)

	v.SetDefault("action.default_target", []float64{0, 64, 0})
	v.SetDefault("action.search_radius", 32)
	v.SetDefault("action.gather_count", 8)
	v.SetDefault("action.batch_size", 16)
	v.SetDefault("action.snapshot_max_age_seconds", 30)
}

// Load decodes and validates the configuration from a viper instance
// that already has defaults, file, and env sources applied.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, golemerr.ErrConfigInvalid("config", "could not decode").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Queue.Capacity <= 0 {
		return golemerr.ErrConfigInvalid("queue.capacity", "must be positive")
	}
	if c.Queue.TaskTimeout <= 0 {
		return golemerr.ErrConfigInvalid("queue.task_timeout", "must be positive")
	}
	if c.Queue.RetryLimit < 0 {
		return golemerr.ErrConfigInvalid("queue.retry_limit", "must not be negative")
	}
	if c.Recovery.MaxReplanDepth < 0 {
		return golemerr.ErrConfigInvalid("recovery.max_replan_depth", "must not be negative")
	}
	if c.Actuator.Endpoint == "" {
		return golemerr.ErrConfigInvalid("actuator.endpoint", "is required")
	}
	if c.Planner.Endpoint == "" {
		return golemerr.ErrConfigInvalid("planner.endpoint", "is required")
	}
	if c.Action.BatchSize <= 0 {
		return golemerr.ErrConfigInvalid("action.batch_size", "must be positive")
	}
	return nil
}
