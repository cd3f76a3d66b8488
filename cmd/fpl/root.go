// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianFPL/pkg/logging"
	"github.com/AleutianAI/AleutianFPL/services/forecast/config"
	"github.com/AleutianAI/AleutianFPL/services/forecast/loader"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

// app is the state shared by every subcommand, filled by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	logDir     string
	offline    bool
	baseURL    string

	cfg    config.Config
	log    *logging.Logger
	logger *slog.Logger
}

// close releases the log file.
func (a *app) close() error {
	if a.log == nil {
		return nil
	}
	return a.log.Close()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fpl",
		Short:         "Forecast Fantasy Premier League gameweeks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default $"+config.EnvVar+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", logging.FormatAuto, "log format: auto, text or json")
	root.PersistentFlags().StringVar(&a.logDir, "log-dir", "", "also write JSON logs to a daily file in this directory")
	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "never call the FPL API, use snapshots of any age")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "FPL API root (overrides the configuration)")

	root.AddCommand(
		newFetchCmd(a),
		newPredictCmd(a),
		newScoreCmd(a),
		newBacktestCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newDumpCmd(a),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	log, err := logging.New(logging.Config{
		Level:   a.logLevel,
		Format:  a.logFormat,
		Writer:  stderr,
		LogDir:  a.logDir,
		Service: "fpl",
	})
	if err != nil {
		return err
	}
	a.log = log
	a.logger = log.Logger
	slog.SetDefault(a.logger)

	cfg, path, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Fetch.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	if path != "" {
		a.logger.Debug("configuration loaded", slog.String("path", path))
	}
	return nil
}

// openStore opens the configured snapshot backend.
func (a *app) openStore() (loader.SnapshotStore, error) {
	dir := a.cfg.Data.SnapshotDir()
	switch a.cfg.Data.Backend {
	case config.BackendBadger:
		return loader.OpenBadgerSnapshotStore(loader.BadgerConfig{
			Path:       dir,
			SyncWrites: true,
			Logger:     a.logger.With(slog.String("component", "badger")),
		})
	default:
		return loader.NewFileSnapshotStore(dir)
	}
}

// source returns a snapshot source. force refetches every resource
// regardless of snapshot age.
func (a *app) source(store loader.SnapshotStore, force bool) (*loader.Source, error) {
	src := &loader.Source{
		Store:     store,
		Freshness: a.cfg.Data.Freshness(),
		Logger:    a.logger,
	}
	if force {
		src.Freshness = 0
	}
	if a.offline {
		return src, nil
	}
	fetcher, err := loader.NewFetcher(&http.Client{Timeout: a.cfg.Fetch.Timeout}, a.cfg.Fetch.Loader(), a.logger)
	if err != nil {
		return nil, err
	}
	src.Remote = fetcher
	return src, nil
}

// loadPipeline bootstraps a registry from the snapshots, fetching stale
// ones unless offline, and builds the pipeline over it.
func (a *app) loadPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	src, err := a.source(store, false)
	if err != nil {
		return nil, err
	}
	return a.buildPipeline(ctx, src)
}

// reloadPipeline rebuilds from the stored snapshots without fetching.
func (a *app) reloadPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return a.buildPipeline(ctx, &loader.Source{Store: store, Logger: a.logger})
}

func (a *app) buildPipeline(ctx context.Context, src *loader.Source) (*pipeline.Pipeline, error) {
	reg := registry.New()
	if err := loader.Bootstrap(ctx, src, reg); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return pipeline.New(reg, a.cfg.Pipeline.Pipeline())
}
