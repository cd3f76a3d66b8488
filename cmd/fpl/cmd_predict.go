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
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
)

// predictFlags binds the flags shared by predict and score.
type predictFlags struct {
	next       int
	target     int
	horizon    int
	targets    []int
	minHistory int
}

func (f *predictFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.next, "next", 0, "first unplayed gameweek of the season state (default: the next gameweek)")
	fs.IntVar(&f.target, "target", 0, "first predicted gameweek (default: --next)")
	fs.IntVar(&f.horizon, "horizon", 0, "number of consecutive gameweeks predicted (default 1)")
	fs.IntSliceVar(&f.targets, "targets", nil, "explicit predicted gameweeks, overriding --target and --horizon")
	fs.IntVar(&f.minHistory, "min-history", 0, "gameweeks of player history (default: configuration)")
}

func (f *predictFlags) request(fs *pflag.FlagSet) pipeline.PredictRequest {
	req := pipeline.PredictRequest{
		NextGameweek:   f.next,
		TargetGameweek: f.target,
		Horizon:        f.horizon,
		MinHistory:     f.minHistory,
	}
	if fs.Changed("targets") {
		req.TargetGameweeks = f.targets
		if req.TargetGameweeks == nil {
			req.TargetGameweeks = []int{}
		}
	}
	return req
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		pf       predictFlags
		position string
		rank     string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank players by predicted points",
		Example: `  fpl predict --horizon 3 --position MID --limit 10
  fpl predict --next 5 --targets 5,7 --rank points_per_cost`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			by, err := prediction.ParseRanking(rank)
			if err != nil {
				return err
			}
			var pt model.PlayerType
			if position != "" {
				if pt, err = model.ParsePlayerType(position); err != nil {
					return err
				}
			}

			p, err := a.loadPipeline(cmd.Context())
			if err != nil {
				return err
			}
			preds, err := p.Predict(cmd.Context(), pf.request(cmd.Flags()))
			if err != nil {
				return err
			}
			view := preds
			if pt != 0 {
				view = preds.ForType(pt)
			}
			players := view.Rank(by)
			if limit > 0 && limit < len(players) {
				players = players[:limit]
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"gameweeks": preds.Gameweeks(),
					"rank":      by.String(),
					"players":   players,
				})
			}
			return renderPlayers(cmd.OutOrStdout(), preds.Gameweeks(), by, players)
		},
	}
	pf.register(cmd.Flags())
	cmd.Flags().StringVar(&position, "position", "", "only players at this position: GKP, DEF, MID or FWD")
	cmd.Flags().StringVar(&rank, "rank", "points", "ranking: points, points_per_cost, clean_sheet, xg, xa or dc")
	cmd.Flags().IntVar(&limit, "limit", 20, "players shown, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of a table")
	return cmd
}
