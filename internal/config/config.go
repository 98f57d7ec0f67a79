// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates paintgraph's run configuration,
// mirroring the teacher CLI's single-YAML-file convention
// (cmd/aleutian's Config type) and graph.BuilderConfig's
// named-defaults style of filling in zero values rather than erroring.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config bounds the painting session's concurrency and convergence
// behavior (spec.md §5 Concurrency & Resource Model, §7
// IterationCapExceeded).
type Config struct {
	// Workers is the number of concurrent painting-task goroutines. Zero
	// means GOMAXPROCS-sized, matching graph/parallel.go's
	// maxParallelWorkers convention.
	Workers int `yaml:"workers"`

	// BrushIterationCap bounds a single method's brush fixpoint loop
	// (spec.md §7 IterationCapExceeded, internal/color.maxBrushIterations
	// default).
	BrushIterationCap int `yaml:"brush_iteration_cap"`

	// TaskExecutionCap bounds how many times one PaintingTask may be
	// re-run before the session gives up on it converging (a task that
	// keeps getting invalidated by its own transitive callees' field
	// effects never reaching a fixpoint).
	TaskExecutionCap int `yaml:"task_execution_cap"`

	// TaskTimeout bounds a single task's wall-clock execution time.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// RulesPath is read from the config file, but cmd/paintgraph does not
	// consult it: analyze takes its rule file from --rules and serve from
	// the request body.
	RulesPath string `yaml:"rules_path"`

	// LogLevel is one of debug/info/warn/error (pkg/logging.Level).
	LogLevel string `yaml:"log_level"`

	// LogDir, if set, additionally writes JSON logs to this directory
	// (pkg/logging.Config.LogDir).
	LogDir string `yaml:"log_dir"`

	// MetricsAddr is read from the config file, but cmd/paintgraph does not
	// consult it: serve exposes /metrics on its own --addr listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration paintgraph runs with when no file is
// supplied.
func Default() Config {
	return Config{
		Workers:           0,
		BrushIterationCap: 64,
		TaskExecutionCap:  32,
		TaskTimeout:       30 * time.Second,
		LogLevel:          "info",
	}
}

// Load reads a YAML configuration file, layering its values on top of
// Default() so a partial file only overrides what it mentions.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// withDefaults fills in any zero-value field a YAML file left unset,
// following graph.BuilderConfig's named-defaults pattern.
func (c Config) withDefaults() Config {
	d := Default()
	if c.BrushIterationCap <= 0 {
		c.BrushIterationCap = d.BrushIterationCap
	}
	if c.TaskExecutionCap <= 0 {
		c.TaskExecutionCap = d.TaskExecutionCap
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

// Validate reports a descriptive error for any configuration value the
// rest of the engine cannot operate with.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.BrushIterationCap <= 0 {
		return fmt.Errorf("config: brush_iteration_cap must be > 0, got %d", c.BrushIterationCap)
	}
	if c.TaskExecutionCap <= 0 {
		return fmt.Errorf("config: task_execution_cap must be > 0, got %d", c.TaskExecutionCap)
	}
	return nil
}
