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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		pf        predictFlags
		squadSize int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the top predicted players against actual points",
		Long: `Picks the squad-size players with the most predicted points over the
target gameweeks and sums their actual points. Every target gameweek must
already be played, so --next is usually set in the past.`,
		Example: "  fpl score --next 10 --horizon 2 --squad-size 11",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.loadPipeline(cmd.Context())
			if err != nil {
				return err
			}
			req := pipeline.ScoreRequest{PredictRequest: pf.request(cmd.Flags()), SquadSize: squadSize}
			score, err := p.Score(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"score": score})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Score: %d\n", score)
			return err
		},
	}
	pf.register(cmd.Flags())
	cmd.Flags().IntVar(&squadSize, "squad-size", 0, "players scored (default: configuration)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON")
	return cmd
}
