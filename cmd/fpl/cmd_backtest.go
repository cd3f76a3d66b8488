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
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		req       pipeline.BacktestRequest
		showStats bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the season against the form and cost baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.With(slog.String("run_id", uuid.NewString()))

			p, err := a.loadPipeline(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			report, err := p.Backtest(cmd.Context(), req)
			if err != nil {
				return err
			}
			points, form, cost := report.MeanPoints()
			logger.Info("backtest complete",
				slog.Int("gameweeks", len(report.Gameweeks)),
				slog.Float64("mean_points", points),
				slog.Float64("mean_form_points", form),
				slog.Float64("mean_cost_points", cost),
				slog.Duration("elapsed", time.Since(start)),
			)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			if err := renderBacktest(out, report); err != nil {
				return err
			}
			if showStats {
				return renderStats(out, p.CacheStats())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&req.LastGameweek, "last", 0, "last evaluated gameweek (default: the last played)")
	cmd.Flags().IntVar(&req.MinHistory, "min-history", 0, "gameweeks of history and gameweeks skipped (default: configuration)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print cache statistics after the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON")
	return cmd
}
