// Package config loads bvhtool settings.
package config

import (
	"errors"
	"fmt"
	gomath "math"
)

// ErrInvalid marks a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid config")

// Config holds all tool settings.
type Config struct {
	Parse      ParseConfig      `yaml:"parse"`
	Kinematics KinematicsConfig `yaml:"kinematics"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ParseConfig holds BVH reader settings.
type ParseConfig struct {
	KeepEndSites bool `yaml:"keep_end_sites"` // keep End Site blocks as terminal joints
}

// KinematicsConfig holds engine settings.
type KinematicsConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// ExportConfig holds segment buffer export settings.
type ExportConfig struct {
	Scale float64 `yaml:"scale"`
	Frame int     `yaml:"frame"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Parse: ParseConfig{
			KeepEndSites: true,
		},
		Kinematics: KinematicsConfig{
			Workers: 0,
		},
		Export: ExportConfig{
			Scale: 0.015,
			Frame: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.Kinematics.Workers < 0 {
		return fmt.Errorf("%w: kinematics.workers %d is negative", ErrInvalid, c.Kinematics.Workers)
	}
	if s := c.Export.Scale; s <= 0 || gomath.IsNaN(s) || gomath.IsInf(s, 0) {
		return fmt.Errorf("%w: export.scale %v must be positive", ErrInvalid, s)
	}
	if c.Export.Frame < 0 {
		return fmt.Errorf("%w: export.frame %d is negative", ErrInvalid, c.Export.Frame)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}
