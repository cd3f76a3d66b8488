// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prediction

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
)

// ErrNoActualPoints is returned when a player total has no recorded points
// yet, so it cannot be scored.
var ErrNoActualPoints = errors.New("no actual points recorded")

// Directory resolves the records named by predictions.
type Directory interface {
	Team(id int) (model.Team, error)
	Player(id int) (model.Player, error)
}

// Points splits predicted points by source.
type Points struct {
	CleanSheet float64 `json:"clean_sheet"`
	Goals      float64 `json:"goals"`
	Assists    float64 `json:"assists"`
	DC         float64 `json:"dc"`
	Total      float64 `json:"total"`
}

// PlayerTotal is a player's prediction summed over every predicted
// fixture. Point values use the mean per fixture.
type PlayerTotal struct {
	Player        model.Player        `json:"player"`
	Fixtures      int                 `json:"fixtures"`
	CleanSheet    aggregate.Aggregate `json:"clean_sheet"`
	XG            aggregate.Aggregate `json:"xg"`
	XA            aggregate.Aggregate `json:"xa"`
	DC            aggregate.Aggregate `json:"dc"`
	Points        Points              `json:"points"`
	PointsPerCost float64             `json:"points_per_cost"`
	ActualPoints  *int                `json:"actual_points"`
}

// ActualPointsPerCost returns actual points divided by cost. ok is false
// when there are no actual points or the player has no cost.
func (p PlayerTotal) ActualPointsPerCost() (value float64, ok bool) {
	if p.ActualPoints == nil || p.Player.NowCost == 0 {
		return 0, false
	}
	return float64(*p.ActualPoints) / p.Player.NowCost, true
}

func newPlayerTotal(player model.Player, fixtures []PlayerFixturePrediction) PlayerTotal {
	t := PlayerTotal{Player: player, Fixtures: len(fixtures)}
	for _, fp := range fixtures {
		t.CleanSheet = t.CleanSheet.Add(fp.CleanSheet)
		t.XG = t.XG.Add(fp.XG)
		t.XA = t.XA.Add(fp.XA)
		t.DC = t.DC.Add(fp.DC)
		if tp := fp.Fixture.TotalPoints; tp != nil {
			if t.ActualPoints == nil {
				t.ActualPoints = new(int)
			}
			*t.ActualPoints += *tp
		}
	}

	pt := player.Type
	t.Points = Points{
		CleanSheet: t.CleanSheet.P() * pt.CleanSheetPoints(),
		Goals:      t.XG.P() * pt.GoalPoints(),
		Assists:    t.XA.P() * pt.AssistPoints(),
		DC:         t.DC.P() * pt.DCPoints(),
	}
	t.Points.Total = t.Points.CleanSheet + t.Points.Goals + t.Points.Assists + t.Points.DC
	if player.NowCost != 0 {
		t.PointsPerCost = t.Points.Total / player.NowCost
	}
	return t
}

// TeamTotal is a team's clean sheet prediction over every predicted
// fixture.
type TeamTotal struct {
	Team       model.Team          `json:"team"`
	Fixtures   int                 `json:"fixtures"`
	CleanSheet aggregate.Aggregate `json:"clean_sheet"`
}

// Ranking orders player totals.
type Ranking int

const (
	ByPoints Ranking = iota
	ByPointsPerCost
	ByCleanSheet
	ByXG
	ByXA
	ByDC
)

var rankingNames = []string{"points", "points_per_cost", "clean_sheet", "xg", "xa", "dc"}

// String returns the ranking name.
func (r Ranking) String() string {
	if int(r) < 0 || int(r) >= len(rankingNames) {
		return fmt.Sprintf("Ranking(%d)", int(r))
	}
	return rankingNames[r]
}

// ParseRanking parses a ranking name.
func ParseRanking(s string) (Ranking, error) {
	i := slices.Index(rankingNames, strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return 0, fmt.Errorf("unknown ranking %q", s)
	}
	return Ranking(i), nil
}

func (r Ranking) value(t PlayerTotal) float64 {
	switch r {
	case ByPointsPerCost:
		return t.PointsPerCost
	case ByCleanSheet:
		return t.Points.CleanSheet
	case ByXG:
		return t.Points.Goals
	case ByXA:
		return t.Points.Assists
	case ByDC:
		return t.Points.DC
	default:
		return t.Points.Total
	}
}

// GameweekPredictions combines the predictions of several gameweeks.
//
// Thread Safety:
//
//	Immutable after construction. Safe for concurrent use.
type GameweekPredictions struct {
	gameweeks []*GameweekPrediction
	teams     []TeamTotal
	players   []PlayerTotal
}

// Combine builds totals over gws, keeping their order.
//
// Description:
//
//	Every team and player predicted in any gameweek gets a total, in
//	first-seen order. A player missing from a gameweek (blank gameweek)
//	simply has fewer fixtures.
//
// Inputs:
//
//	dir - Resolves team and player records.
//	gws - Gameweek predictions in caller order.
//
// Outputs:
//
//	*GameweekPredictions - The combined predictions.
//	error - Non-nil if a team or player cannot be resolved.
func Combine(dir Directory, gws []*GameweekPrediction) (*GameweekPredictions, error) {
	out := &GameweekPredictions{gameweeks: slices.Clone(gws)}

	var teamOrder, playerOrder []int
	teamFixtures := make(map[int][]TeamFixturePrediction)
	playerFixtures := make(map[int][]PlayerFixturePrediction)
	for _, gw := range gws {
		for _, id := range gw.teamOrder {
			if _, ok := teamFixtures[id]; !ok {
				teamOrder = append(teamOrder, id)
			}
			teamFixtures[id] = append(teamFixtures[id], gw.teams[id]...)
		}
		for _, id := range gw.playerOrder {
			if _, ok := playerFixtures[id]; !ok {
				playerOrder = append(playerOrder, id)
			}
			playerFixtures[id] = append(playerFixtures[id], gw.players[id]...)
		}
	}

	for _, id := range teamOrder {
		team, err := dir.Team(id)
		if err != nil {
			return nil, fmt.Errorf("team %d: %w", id, err)
		}
		t := TeamTotal{Team: team, Fixtures: len(teamFixtures[id])}
		for _, fp := range teamFixtures[id] {
			t.CleanSheet = t.CleanSheet.Add(fp.CleanSheet)
		}
		out.teams = append(out.teams, t)
	}
	for _, id := range playerOrder {
		player, err := dir.Player(id)
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", id, err)
		}
		out.players = append(out.players, newPlayerTotal(player, playerFixtures[id]))
	}
	return out, nil
}

// Gameweeks returns the predicted gameweeks in caller order.
func (g *GameweekPredictions) Gameweeks() []int {
	ids := make([]int, len(g.gameweeks))
	for i, gw := range g.gameweeks {
		ids[i] = gw.Gameweek
	}
	return ids
}

// Gameweek returns the prediction of one gameweek.
func (g *GameweekPredictions) Gameweek(gw int) (*GameweekPrediction, bool) {
	for _, p := range g.gameweeks {
		if p.Gameweek == gw {
			return p, true
		}
	}
	return nil, false
}

// Players returns the player totals in first-seen order.
func (g *GameweekPredictions) Players() []PlayerTotal {
	return slices.Clone(g.players)
}

// Player returns one player's total.
func (g *GameweekPredictions) Player(id int) (PlayerTotal, bool) {
	for _, p := range g.players {
		if p.Player.ID == id {
			return p, true
		}
	}
	return PlayerTotal{}, false
}

// ForType returns a view restricted to one position.
func (g *GameweekPredictions) ForType(pt model.PlayerType) *GameweekPredictions {
	view := &GameweekPredictions{gameweeks: g.gameweeks, teams: g.teams}
	for _, p := range g.players {
		if p.Player.Type == pt {
			view.players = append(view.players, p)
		}
	}
	return view
}

// Rank returns the player totals in descending order of the ranking, ties
// broken by ascending player ID.
func (g *GameweekPredictions) Rank(by Ranking) []PlayerTotal {
	out := slices.Clone(g.players)
	slices.SortStableFunc(out, func(a, b PlayerTotal) int {
		if c := cmp.Compare(by.value(b), by.value(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Player.ID, b.Player.ID)
	})
	return out
}

// Top returns the first n players of a ranking.
func (g *GameweekPredictions) Top(by Ranking, n int) []PlayerTotal {
	ranked := g.Rank(by)
	if n < len(ranked) {
		ranked = ranked[:max(n, 0)]
	}
	return ranked
}

// Teams returns the team totals in descending order of clean sheet
// probability, ties broken by ascending team ID.
func (g *GameweekPredictions) Teams() []TeamTotal {
	out := slices.Clone(g.teams)
	slices.SortStableFunc(out, func(a, b TeamTotal) int {
		if c := cmp.Compare(b.CleanSheet.P(), a.CleanSheet.P()); c != 0 {
			return c
		}
		return cmp.Compare(a.Team.ID, b.Team.ID)
	})
	return out
}

// SumActualPoints adds up the actual points of players.
//
// Outputs:
//
//	int - Sum of actual points.
//	error - ErrNoActualPoints naming the first player without any.
func SumActualPoints(players []PlayerTotal) (int, error) {
	sum := 0
	for _, p := range players {
		if p.ActualPoints == nil {
			return 0, fmt.Errorf("player %d: %w", p.Player.ID, ErrNoActualPoints)
		}
		sum += *p.ActualPoints
	}
	return sum, nil
}
