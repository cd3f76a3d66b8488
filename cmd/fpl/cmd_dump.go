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
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

var (
	fdrHeader = []string{"gameweek", "team", "home_away", "difficulty", "opponent", "score"}

	playersHeader = []string{
		"player_id", "name", "web_name", "position", "team", "price", "status",
		"total_points", "minutes", "starts", "goals_scored", "assists", "clean_sheets",
		"defensive_contribution", "expected_goals", "expected_assists",
		"expected_goal_involvements", "expected_goals_conceded",
	}
)

func newDumpCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export registry tables as CSV",
	}
	cmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")

	var first, last int
	fdr := &cobra.Command{
		Use:   "fdr",
		Short: "Fixture difficulty per team and gameweek",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if first < 0 || last < 0 || (last > 0 && first > last) {
				return fmt.Errorf("invalid gameweek range %d..%d", first, last)
			}
			return a.dump(cmd, outPath, func(w *csv.Writer, reg *registry.Registry) (int, error) {
				return writeFDR(w, reg, first, last)
			})
		},
	}
	fdr.Flags().IntVar(&first, "first", 0, "first gameweek (default: the first)")
	fdr.Flags().IntVar(&last, "last", 0, "last gameweek (default: the last)")

	players := &cobra.Command{
		Use:   "players",
		Short: "Players with price, status and season totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.dump(cmd, outPath, writePlayers)
		},
	}

	cmd.AddCommand(fdr, players)
	return cmd
}

// dump loads the registry and writes one CSV table to outPath or stdout.
func (a *app) dump(cmd *cobra.Command, outPath string, write func(*csv.Writer, *registry.Registry) (int, error)) (err error) {
	p, err := a.loadPipeline(cmd.Context())
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		out = f
	}

	w := csv.NewWriter(out)
	rows, err := write(w, p.Registry())
	if err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	a.logger.Info("dump written",
		slog.String("table", cmd.Name()),
		slog.Int("rows", rows),
		slog.String("out", cmp.Or(outPath, "stdout")),
	)
	return nil
}

// writeFDR writes one row per team per fixture in gameweek order. Zero
// bounds are open. Unplayed fixtures have an empty score.
func writeFDR(w *csv.Writer, reg *registry.Registry, first, last int) (int, error) {
	if err := w.Write(fdrHeader); err != nil {
		return 0, err
	}
	rows := 0
	for _, gw := range reg.GameweekIDs() {
		if gw < first || (last > 0 && gw > last) {
			continue
		}
		fixtures, err := reg.FixturesByGameweek(gw)
		if err != nil {
			return rows, err
		}
		for _, f := range fixtures {
			score := ""
			if f.Home.Score != nil && f.Away.Score != nil {
				score = fmt.Sprintf("%d:%d", *f.Home.Score, *f.Away.Score)
			}
			for _, side := range model.Sides {
				tf := f.TeamFixture(side)
				opp := f.Opponent(side)
				team, err := teamName(reg, tf.TeamID)
				if err != nil {
					return rows, err
				}
				opponent, err := teamName(reg, opp.TeamID)
				if err != nil {
					return rows, err
				}
				ha := "H"
				if side == model.Away {
					ha = "A"
				}
				if err := w.Write([]string{
					strconv.Itoa(gw), team, ha, strconv.Itoa(tf.Difficulty), opponent, score,
				}); err != nil {
					return rows, err
				}
				rows++
			}
		}
	}
	return rows, nil
}

// writePlayers writes one row per player, ordered by ID, with totals over
// every recorded fixture.
func writePlayers(w *csv.Writer, reg *registry.Registry) (int, error) {
	if err := w.Write(playersHeader); err != nil {
		return 0, err
	}
	players := reg.Players.Items()
	slices.SortFunc(players, func(a, b model.Player) int { return cmp.Compare(a.ID, b.ID) })

	for _, pl := range players {
		team, err := teamName(reg, pl.TeamID)
		if err != nil {
			return 0, err
		}
		pfs, err := reg.PlayerFixturesByPlayer(pl.ID)
		if err != nil {
			return 0, err
		}
		var t model.PlayerFixture
		points := 0
		for _, pf := range pfs {
			if pf.TotalPoints != nil {
				points += *pf.TotalPoints
			}
			t.Minutes += pf.Minutes
			t.Starts += pf.Starts
			t.Goals += pf.Goals
			t.Assists += pf.Assists
			t.CleanSheets += pf.CleanSheets
			t.DefensiveContribution += pf.DefensiveContribution
			t.XG += pf.XG
			t.XA += pf.XA
			t.XGI += pf.XGI
			t.XGC += pf.XGC
		}
		if err := w.Write([]string{
			strconv.Itoa(pl.ID),
			pl.FirstName + " " + pl.SecondName,
			pl.WebName,
			pl.Type.String(),
			team,
			strconv.FormatFloat(pl.NowCost, 'f', 1, 64),
			pl.Status,
			strconv.Itoa(points),
			strconv.Itoa(t.Minutes),
			strconv.Itoa(t.Starts),
			strconv.Itoa(t.Goals),
			strconv.Itoa(t.Assists),
			strconv.Itoa(t.CleanSheets),
			strconv.Itoa(t.DefensiveContribution),
			f2(t.XG),
			f2(t.XA),
			f2(t.XGI),
			f2(t.XGC),
		}); err != nil {
			return 0, err
		}
	}
	return len(players), nil
}

func teamName(reg *registry.Registry, id int) (string, error) {
	t, err := reg.Team(id)
	if err != nil {
		return "", fmt.Errorf("team %d: %w", id, err)
	}
	return t.Name, nil
}
