// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the fpl.yaml configuration.
//
// A file is decoded over Default(), so it only needs the fields it
// changes. Unknown fields are rejected and the result is validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianFPL/services/forecast/forecast"
	"github.com/AleutianAI/AleutianFPL/services/forecast/loader"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

// EnvVar names the configuration file when no path is given.
const EnvVar = "FPL_CONFIG"

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

var configValidate = validator.New()

// Config is the full configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DataConfig locates the snapshots.
type DataConfig struct {
	Dir           string `yaml:"dir" validate:"required"`
	Season        string `yaml:"season" validate:"required"`
	FreshnessDays int    `yaml:"freshness_days" validate:"min=0"`
	Backend       string `yaml:"backend" validate:"oneof=file badger"`
}

// SnapshotDir is the directory of the season's snapshots.
func (c DataConfig) SnapshotDir() string {
	return filepath.Join(c.Dir, c.Season)
}

// Freshness is the snapshot age below which no fetch happens.
func (c DataConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessDays) * 24 * time.Hour
}

// FetchConfig configures requests to the FPL API.
type FetchConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	Retries           int           `yaml:"retries" validate:"min=0,max=10"`
	Workers           int           `yaml:"workers" validate:"min=1,max=32"`
	UserAgent         string        `yaml:"user_agent"`
}

// Loader converts to the loader's fetch settings.
func (c FetchConfig) Loader() loader.FetcherConfig {
	return loader.FetcherConfig{
		BaseURL:           c.BaseURL,
		RequestsPerSecond: c.RequestsPerSecond,
		Retries:           c.Retries,
		Workers:           c.Workers,
		UserAgent:         c.UserAgent,
	}
}

// PipelineConfig holds the forecast defaults.
type PipelineConfig struct {
	MinHistory int    `yaml:"min_history_gws" validate:"min=1,max=38"`
	SquadSize  int    `yaml:"squad_size" validate:"min=1"`
	Variant    string `yaml:"model_variant" validate:"oneof=form share"`
	MaxEntries int    `yaml:"max_entries" validate:"min=0"`
}

// Pipeline converts to the pipeline configuration.
func (c PipelineConfig) Pipeline() pipeline.Config {
	return pipeline.Config{
		MinHistory: c.MinHistory,
		SquadSize:  c.SquadSize,
		Variant:    forecast.Variant(c.Variant),
		MaxEntries: c.MaxEntries,
	}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	ReloadDebounce time.Duration `yaml:"reload_debounce" validate:"min=0"`
	Watch          bool          `yaml:"watch"`
}

// TelemetryConfig selects the exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := pipeline.DefaultConfig()
	return Config{
		Data: DataConfig{
			Dir:           "data",
			Season:        "2025-2026",
			FreshnessDays: 1,
			Backend:       BackendFile,
		},
		Fetch: FetchConfig{
			BaseURL:           loader.DefaultBaseURL,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Retries:           3,
			Workers:           4,
			UserAgent:         "AleutianFPL/1.0",
		},
		Pipeline: PipelineConfig{
			MinHistory: p.MinHistory,
			SquadSize:  p.SquadSize,
			Variant:    string(p.Variant),
			MaxEntries: p.MaxEntries,
		},
		Server: ServerConfig{
			Port:           8080,
			ReloadDebounce: 2 * time.Second,
			Watch:          true,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "aleutian-fpl",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads the configuration.
//
// Description:
//
//	path falls back to $FPL_CONFIG. With neither set, Default() is
//	returned. A named file must exist.
//
// Outputs:
//
//	Config - Validated configuration.
//	string - The file read, empty for defaults.
//	error - Non-nil for an unreadable, malformed or invalid file.
func Load(path string) (Config, string, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, "", cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, path, fmt.Errorf("read config: %w", err)
	}
	cfg, err = Parse(data)
	return cfg, path, err
}

// Parse decodes YAML over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes Default() to path, creating its directory. An
// existing file is not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
