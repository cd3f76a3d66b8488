// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prediction holds per-gameweek predictions and the totals and
// rankings built from them.
//
// A GameweekPrediction is filled once by its producer and then only read.
// GameweekPredictions combines several of them and computes its totals at
// construction, so every read method is safe for concurrent use.
package prediction

import (
	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
)

// TeamFixturePrediction is the clean sheet prediction of one side of a
// fixture.
type TeamFixturePrediction struct {
	Fixture    model.TeamFixture   `json:"fixture"`
	OpponentID int                 `json:"opponent_id"`
	Side       model.Side          `json:"side"`
	CleanSheet aggregate.Aggregate `json:"clean_sheet"`
}

// PlayerFixturePrediction is the prediction of one player in one fixture.
type PlayerFixturePrediction struct {
	Fixture    model.PlayerFixture `json:"fixture"`
	CleanSheet aggregate.Aggregate `json:"clean_sheet"`
	XG         aggregate.Aggregate `json:"xg"`
	XA         aggregate.Aggregate `json:"xa"`
	DC         aggregate.Aggregate `json:"dc"`
}

// GameweekPrediction holds every prediction of one gameweek. Teams and
// players with two fixtures (double gameweeks) keep both.
type GameweekPrediction struct {
	Gameweek int

	teams       map[int][]TeamFixturePrediction
	players     map[int][]PlayerFixturePrediction
	teamOrder   []int
	playerOrder []int
}

// NewGameweekPrediction returns an empty prediction for gameweek gw.
func NewGameweekPrediction(gw int) *GameweekPrediction {
	return &GameweekPrediction{
		Gameweek: gw,
		teams:    make(map[int][]TeamFixturePrediction),
		players:  make(map[int][]PlayerFixturePrediction),
	}
}

// AddTeam records a team fixture prediction.
func (g *GameweekPrediction) AddTeam(p TeamFixturePrediction) {
	id := p.Fixture.TeamID
	if _, ok := g.teams[id]; !ok {
		g.teamOrder = append(g.teamOrder, id)
	}
	g.teams[id] = append(g.teams[id], p)
}

// AddPlayer records a player fixture prediction.
func (g *GameweekPrediction) AddPlayer(p PlayerFixturePrediction) {
	id := p.Fixture.PlayerID
	if _, ok := g.players[id]; !ok {
		g.playerOrder = append(g.playerOrder, id)
	}
	g.players[id] = append(g.players[id], p)
}

// TeamIDs returns the predicted teams in first-added order.
func (g *GameweekPrediction) TeamIDs() []int {
	return append([]int(nil), g.teamOrder...)
}

// PlayerIDs returns the predicted players in first-added order.
func (g *GameweekPrediction) PlayerIDs() []int {
	return append([]int(nil), g.playerOrder...)
}

// Team returns a team's fixture predictions, nil if it has none.
func (g *GameweekPrediction) Team(id int) []TeamFixturePrediction {
	return append([]TeamFixturePrediction(nil), g.teams[id]...)
}

// Player returns a player's fixture predictions, nil if they have none.
func (g *GameweekPrediction) Player(id int) []PlayerFixturePrediction {
	return append([]PlayerFixturePrediction(nil), g.players[id]...)
}

// Len returns the number of player fixture predictions.
func (g *GameweekPrediction) Len() int {
	n := 0
	for _, ps := range g.players {
		n += len(ps)
	}
	return n
}
