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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianFPL/services/forecast/api"
	"github.com/AleutianAI/AleutianFPL/services/forecast/config"
	"github.com/AleutianAI/AleutianFPL/services/forecast/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast HTTP API",
		Long: `Loads the snapshots, builds the pipeline and serves it under
/v1/forecast. With the file backend and server.watch set, the pipeline is
rebuilt whenever the snapshot directory changes, e.g. after "fpl fetch".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				a.cfg.Server.Port = port
			}
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: configuration)")
	return cmd
}

// serve runs the API on ln until ctx is done.
//
// Description:
//
//	Initializes telemetry, builds the first pipeline generation, starts the
//	snapshot reloader when enabled and serves until ctx is cancelled. The
//	server then drains for up to shutdownTimeout before telemetry is
//	flushed.
//
// Inputs:
//
//	ctx - Lifetime of the server.
//	ln - Listener, closed on return.
//
// Outputs:
//
//	error - Non-nil if startup failed or the server stopped abnormally.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	if a.logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		TraceExporter:  a.cfg.Telemetry.TraceExporter,
		MetricExporter: a.cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   a.cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   a.cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	p, err := a.loadPipeline(ctx)
	if err != nil {
		return err
	}
	holder := api.NewHolder(p)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reloadDone := make(chan struct{})
	if a.cfg.Server.Watch && a.cfg.Data.Backend == config.BackendFile {
		reloader, err := api.NewReloader(holder, a.cfg.Data.SnapshotDir(), a.reloadPipeline, a.cfg.Server.ReloadDebounce, a.logger)
		if err != nil {
			return err
		}
		go func() {
			defer close(reloadDone)
			reloader.Run(ctx)
		}()
	} else {
		close(reloadDone)
	}
	defer func() { <-reloadDone }()
	defer cancel()

	router := api.NewRouter(api.NewHandlers(holder, a.logger), api.RouterConfig{
		ServiceName: a.cfg.Telemetry.ServiceName,
		Metrics:     tel.MetricsHandler(),
		Logger:      a.logger,
	})
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("serving forecast API",
			slog.String("address", ln.Addr().String()),
			slog.Int("next_gameweek", p.Registry().NextGameweek()),
		)
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down forecast API")
	sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
