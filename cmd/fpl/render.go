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
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AleutianAI/AleutianFPL/services/forecast/memo"
	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func actual(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func renderPlayers(w io.Writer, gameweeks []int, by prediction.Ranking, players []prediction.PlayerTotal) error {
	t := newTable("#", "Player", "Pos", "Cost", "Fx", "CS", "xG", "xA", "DC", "Points", "Pts/£", "Actual")
	for i, p := range players {
		t.Row(
			strconv.Itoa(i+1),
			p.Player.WebName,
			p.Player.Type.String(),
			f2(p.Player.NowCost),
			strconv.Itoa(p.Fixtures),
			f2(p.Points.CleanSheet),
			f2(p.Points.Goals),
			f2(p.Points.Assists),
			f2(p.Points.DC),
			f2(p.Points.Total),
			f2(p.PointsPerCost),
			actual(p.ActualPoints),
		)
	}
	_, err := fmt.Fprintf(w, "Gameweeks %v by %s\n%s\n", gameweeks, by, t.Render())
	return err
}

func renderBacktest(w io.Writer, report pipeline.BacktestReport) error {
	t := newTable("GW", "Model", "Form", "Cost", "CS loss", "Pts loss")
	for _, gw := range report.Gameweeks {
		t.Row(
			strconv.Itoa(gw.Gameweek),
			strconv.Itoa(gw.Points),
			strconv.Itoa(gw.FormPoints),
			strconv.Itoa(gw.CostPoints),
			f2(gw.CleanSheetLoss),
			f2(gw.PointsLoss),
		)
	}
	t.Row("Total",
		strconv.Itoa(report.Points),
		strconv.Itoa(report.FormPoints),
		strconv.Itoa(report.CostPoints),
		f2(report.CleanSheetLoss),
		f2(report.PointsLoss),
	)
	points, form, cost := report.MeanPoints()
	_, err := fmt.Fprintf(w, "%s\nMean points per gameweek: model %s, form %s, cost %s\n",
		t.Render(), f2(points), f2(form), f2(cost))
	return err
}

func renderStats(w io.Writer, stats []memo.Stats) error {
	t := newTable("Node", "Entries", "Hits", "Misses", "Computes", "Failures", "Shared", "Evictions")
	for _, s := range stats {
		t.Row(
			s.Name,
			strconv.Itoa(s.Entries),
			strconv.FormatInt(s.Hits, 10),
			strconv.FormatInt(s.Misses, 10),
			strconv.FormatInt(s.Computes, 10),
			strconv.FormatInt(s.Failures, 10),
			strconv.FormatInt(s.Shared, 10),
			strconv.FormatInt(s.Evictions, 10),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
