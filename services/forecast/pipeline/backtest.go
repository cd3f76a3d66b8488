// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianFPL/services/forecast/forecast"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/prediction"
	"github.com/AleutianAI/AleutianFPL/services/forecast/season"
)

// Quota is the number of players picked at one position.
type Quota struct {
	Type  model.PlayerType `json:"type"`
	Count int              `json:"count"`
}

// DefaultQuotas is a fifteen-player squad.
var DefaultQuotas = []Quota{
	{Type: model.GKP, Count: 2},
	{Type: model.DEF, Count: 5},
	{Type: model.MID, Count: 5},
	{Type: model.FWD, Count: 3},
}

const (
	// Players must average more than this many minutes over the history
	// window, and more than costRecentMinutes last gameweek, to be picked
	// by the cost baseline.
	costHistoryMinutes = 60.0
	costRecentMinutes  = 30.0

	// Player fixtures shorter than this are left out of the points loss.
	lossMinMinutes = 10
)

// BacktestRequest configures a backtest. Zero fields take defaults.
type BacktestRequest struct {
	// LastGameweek is the last evaluated gameweek. Default: the last
	// played gameweek.
	LastGameweek int

	// MinHistory is both the player history window and the number of
	// gameweeks skipped before the first evaluation. Default: the pipeline
	// configuration.
	MinHistory int

	// Quotas picks the squad per position. Default: DefaultQuotas.
	Quotas []Quota
}

// PositionResult compares the squad picks at one position.
type PositionResult struct {
	Type       model.PlayerType `json:"type"`
	Points     int              `json:"points"`
	FormPoints int              `json:"form_points"`
	CostPoints int              `json:"cost_points"`
}

// GameweekResult is the evaluation of one gameweek.
type GameweekResult struct {
	Gameweek       int              `json:"gameweek"`
	Points         int              `json:"points"`
	FormPoints     int              `json:"form_points"`
	CostPoints     int              `json:"cost_points"`
	Positions      []PositionResult `json:"positions"`
	CleanSheetLoss float64          `json:"clean_sheet_loss"`
	PointsLoss     float64          `json:"points_loss"`
}

// BacktestReport sums a backtest.
type BacktestReport struct {
	Gameweeks      []GameweekResult `json:"gameweeks"`
	Points         int              `json:"points"`
	FormPoints     int              `json:"form_points"`
	CostPoints     int              `json:"cost_points"`
	CleanSheetLoss float64          `json:"clean_sheet_loss"`
	PointsLoss     float64          `json:"points_loss"`
}

// Backtest replays the season and picks a squad for every played gameweek
// as if it were the next one.
//
// Description:
//
//	For every gameweek after MinHistory up to LastGameweek, the season
//	before it predicts it. Per position, the top predicted players are
//	compared with two baselines: best recent points per appearance (form)
//	and highest value among regular starters (cost). Clean sheet
//	predictions are scored with AvgDiffLoss and predicted points of
//	players who played at least 10 minutes with MAELoss.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - Backtest configuration.
//
// Outputs:
//
//	BacktestReport - Per-gameweek results and totals.
//	error - ErrInvalidParams for a bad request, otherwise a computation
//	        error.
func (p *Pipeline) Backtest(ctx context.Context, req BacktestRequest) (BacktestReport, error) {
	minHistory := req.MinHistory
	if minHistory < 0 {
		return BacktestReport{}, invalid("min history %d is negative", minHistory)
	}
	if minHistory == 0 {
		minHistory = p.cfg.MinHistory
	}
	last := req.LastGameweek
	if last < 0 {
		return BacktestReport{}, invalid("last gameweek %d is negative", last)
	}
	if last == 0 {
		last = p.reg.NextGameweek() - 1
	}
	if last >= p.reg.NextGameweek() {
		return BacktestReport{}, invalid("gameweek %d is not played", last)
	}
	quotas := req.Quotas
	if len(quotas) == 0 {
		quotas = DefaultQuotas
	}
	for _, q := range quotas {
		if !q.Type.Valid() || q.Count < 1 {
			return BacktestReport{}, invalid("quota %d x %s", q.Count, q.Type)
		}
	}

	var report BacktestReport
	for gw := minHistory + 1; gw <= last; gw++ {
		if err := ctx.Err(); err != nil {
			return BacktestReport{}, err
		}
		res, err := p.backtestGameweek(ctx, gw, minHistory, quotas)
		if err != nil {
			return BacktestReport{}, fmt.Errorf("gameweek %d: %w", gw, err)
		}
		report.Gameweeks = append(report.Gameweeks, res)
		report.Points += res.Points
		report.FormPoints += res.FormPoints
		report.CostPoints += res.CostPoints
		report.CleanSheetLoss += res.CleanSheetLoss
		report.PointsLoss += res.PointsLoss
	}
	return report, nil
}

// MeanPoints returns points, form points and cost points per gameweek.
func (r BacktestReport) MeanPoints() (points, form, cost float64) {
	n := float64(len(r.Gameweeks))
	if n == 0 {
		return 0, 0, 0
	}
	return float64(r.Points) / n, float64(r.FormPoints) / n, float64(r.CostPoints) / n
}

type baselinePick struct {
	playerID int
	score    float64
	points   int
}

func (p *Pipeline) backtestGameweek(ctx context.Context, gw, minHistory int, quotas []Quota) (GameweekResult, error) {
	preds, err := p.Predict(ctx, PredictRequest{
		NextGameweek:    gw,
		TargetGameweeks: []int{gw},
		MinHistory:      minHistory,
	})
	if err != nil {
		return GameweekResult{}, err
	}
	s, err := p.Season(ctx, gw)
	if err != nil {
		return GameweekResult{}, err
	}

	res := GameweekResult{Gameweek: gw}
	form := make(map[model.PlayerType][]baselinePick)
	cost := make(map[model.PlayerType][]baselinePick)
	var lossLabels, lossPreds []float64
	for _, total := range preds.Players() {
		ps, err := s.Player(total.Player.ID)
		if err != nil {
			return GameweekResult{}, err
		}
		pfs, err := p.reg.PlayerFixturesByPlayerAndGameweek(total.Player.ID, gw)
		if err != nil {
			return GameweekResult{}, err
		}
		actual := 0
		if total.ActualPoints != nil {
			actual = *total.ActualPoints
		}
		pt := total.Player.Type
		form[pt] = append(form[pt], baselinePick{
			playerID: total.Player.ID,
			score:    ps.Last(season.Points, minHistory).P(),
			points:   actual,
		})
		if ps.Last(season.Minutes, minHistory).P() > costHistoryMinutes && ps.Last(season.Minutes, 1).P() > costRecentMinutes {
			cost[pt] = append(cost[pt], baselinePick{
				playerID: total.Player.ID,
				score:    fixtureValue(pfs),
				points:   actual,
			})
		}
		if total.ActualPoints != nil && minutesIn(pfs) >= lossMinMinutes {
			lossLabels = append(lossLabels, float64(actual))
			lossPreds = append(lossPreds, total.Points.Total)
		}
	}

	for _, q := range quotas {
		picked := preds.ForType(q.Type).Top(prediction.ByPoints, q.Count)
		pos := PositionResult{
			Type:       q.Type,
			FormPoints: sumTop(form[q.Type], q.Count),
			CostPoints: sumTop(cost[q.Type], q.Count),
		}
		for _, pick := range picked {
			if pick.ActualPoints != nil {
				pos.Points += *pick.ActualPoints
			}
		}
		res.Positions = append(res.Positions, pos)
		res.Points += pos.Points
		res.FormPoints += pos.FormPoints
		res.CostPoints += pos.CostPoints
	}

	if res.PointsLoss, err = forecast.MAELoss(lossLabels, lossPreds); err != nil {
		return GameweekResult{}, err
	}
	if res.CleanSheetLoss, err = p.cleanSheetLoss(preds, gw); err != nil {
		return GameweekResult{}, err
	}
	return res, nil
}

func (p *Pipeline) cleanSheetLoss(preds *prediction.GameweekPredictions, gw int) (float64, error) {
	pred, ok := preds.Gameweek(gw)
	if !ok {
		return 0, nil
	}
	var labels, values []float64
	for _, teamID := range pred.TeamIDs() {
		for _, tp := range pred.Team(teamID) {
			f, err := p.reg.Fixture(tp.Fixture.FixtureID)
			if err != nil {
				return 0, err
			}
			if !f.Finished {
				continue
			}
			labels = append(labels, f.CleanSheet(tp.Side))
			values = append(values, tp.CleanSheet.P())
		}
	}
	return forecast.AvgDiffLoss(labels, values)
}

// sumTop sums the points of the n highest scoring picks, ties broken by
// player ID.
func sumTop(picks []baselinePick, n int) int {
	sorted := slices.Clone(picks)
	slices.SortStableFunc(sorted, func(a, b baselinePick) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.playerID, b.playerID)
	})
	sum := 0
	for i := 0; i < len(sorted) && i < n; i++ {
		sum += sorted[i].points
	}
	return sum
}

// fixtureValue returns the player's highest recorded value in a gameweek.
func fixtureValue(pfs []model.PlayerFixture) float64 {
	best := 0
	for _, pf := range pfs {
		best = max(best, pf.Value)
	}
	return float64(best)
}

func minutesIn(pfs []model.PlayerFixture) int {
	total := 0
	for _, pf := range pfs {
		total += pf.Minutes
	}
	return total
}
