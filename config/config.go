// Package config loads convstate settings from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/reducer"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = ".convstate.yaml"

// Config holds the reducer and session settings.
type Config struct {
	PermissionMode  model.PermissionMode `yaml:"permission_mode"`
	LogLevel        string               `yaml:"log_level"`
	PlanPathPattern string               `yaml:"plan_path_pattern"`
	Compaction      reducer.Markers      `yaml:"compaction"`
	Tools           reducer.ToolNames    `yaml:"tools"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		PermissionMode:  model.ModeRequest,
		LogLevel:        "info",
		PlanPathPattern: reducer.DefaultPlanPathPattern,
		Compaction:      reducer.DefaultMarkers(),
		Tools:           reducer.DefaultToolNames(),
	}
}

// Load reads the config at path. A missing file yields the defaults; keys
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be repaired with a default.
func (c *Config) Validate() error {
	if !c.PermissionMode.Valid() {
		return fmt.Errorf("permission_mode %q: want %q or %q", c.PermissionMode, model.ModeAuto, model.ModeRequest)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := regexp.Compile(c.PlanPathPattern); err != nil {
		return fmt.Errorf("plan_path_pattern: %w", err)
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(c.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ReducerOptions converts the settings into reducer options.
func (c *Config) ReducerOptions(logger *slog.Logger) ([]reducer.Option, error) {
	opts := []reducer.Option{
		reducer.WithLogger(logger),
		reducer.WithMarkers(c.Compaction),
		reducer.WithToolNames(c.Tools),
	}
	if c.PlanPathPattern != "" {
		re, err := regexp.Compile(c.PlanPathPattern)
		if err != nil {
			return nil, fmt.Errorf("plan_path_pattern: %w", err)
		}
		opts = append(opts, reducer.WithPlanPathPattern(re))
	}
	return opts, nil
}
