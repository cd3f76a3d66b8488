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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianFPL/services/forecast/aggregate"
	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/store"
)

type directory struct {
	teams   map[int]model.Team
	players map[int]model.Player
}

func (d directory) Team(id int) (model.Team, error) {
	t, ok := d.teams[id]
	if !ok {
		return model.Team{}, store.ErrNotFound
	}
	return t, nil
}

func (d directory) Player(id int) (model.Player, error) {
	p, ok := d.players[id]
	if !ok {
		return model.Player{}, store.ErrNotFound
	}
	return p, nil
}

func testDirectory() directory {
	return directory{
		teams: map[int]model.Team{1: {ID: 1, Name: "A"}, 2: {ID: 2, Name: "B"}},
		players: map[int]model.Player{
			11: {ID: 11, Type: model.DEF, TeamID: 1, NowCost: 5},
			12: {ID: 12, Type: model.MID, TeamID: 1, NowCost: 10},
			21: {ID: 21, Type: model.FWD, TeamID: 2, NowCost: 8},
		},
	}
}

func playerPrediction(playerID, fixtureID int, points *int, cs, xg, xa, dc float64) PlayerFixturePrediction {
	return PlayerFixturePrediction{
		Fixture:    model.PlayerFixture{PlayerID: playerID, FixtureID: fixtureID, TotalPoints: points},
		CleanSheet: aggregate.New(cs, 1),
		XG:         aggregate.New(xg, 1),
		XA:         aggregate.New(xa, 1),
		DC:         aggregate.New(dc, 1),
	}
}

func teamPrediction(teamID, fixtureID int, cs float64) TeamFixturePrediction {
	return TeamFixturePrediction{
		Fixture:    model.TeamFixture{FixtureID: fixtureID, TeamID: teamID},
		CleanSheet: aggregate.New(cs, 1),
	}
}

func TestGameweekPrediction_DoubleGameweekKeepsBoth(t *testing.T) {
	gw := NewGameweekPrediction(7)
	gw.AddPlayer(playerPrediction(11, 700, nil, 0.5, 0, 0, 0))
	gw.AddPlayer(playerPrediction(12, 700, nil, 0.5, 0, 0, 0))
	gw.AddPlayer(playerPrediction(11, 701, nil, 0.3, 0, 0, 0))
	gw.AddTeam(teamPrediction(1, 700, 0.5))
	gw.AddTeam(teamPrediction(1, 701, 0.3))

	assert.Equal(t, []int{11, 12}, gw.PlayerIDs())
	assert.Len(t, gw.Player(11), 2)
	assert.Len(t, gw.Team(1), 2)
	assert.Nil(t, gw.Player(99))
	assert.Equal(t, 3, gw.Len())
}

func TestCombine_Totals(t *testing.T) {
	gw5 := NewGameweekPrediction(5)
	gw5.AddTeam(teamPrediction(1, 500, 0.4))
	gw5.AddTeam(teamPrediction(2, 500, 0.2))
	gw5.AddPlayer(playerPrediction(11, 500, model.IntPtr(6), 0.4, 0.1, 0.1, 10))
	gw5.AddPlayer(playerPrediction(21, 500, model.IntPtr(2), 0, 0.5, 0.1, 2))

	gw6 := NewGameweekPrediction(6)
	gw6.AddTeam(teamPrediction(1, 600, 0.2))
	gw6.AddPlayer(playerPrediction(11, 600, model.IntPtr(1), 0.2, 0.1, 0.1, 8))
	gw6.AddPlayer(playerPrediction(12, 600, nil, 0.2, 0.3, 0.2, 6))

	got, err := Combine(testDirectory(), []*GameweekPrediction{gw6, gw5})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5}, got.Gameweeks(), "caller order")

	players := got.Players()
	require.Len(t, players, 3, "union of every gameweek")
	assert.Equal(t, []int{11, 12, 21}, []int{players[0].Player.ID, players[1].Player.ID, players[2].Player.ID})

	def, ok := got.Player(11)
	require.True(t, ok)
	assert.Equal(t, 2, def.Fixtures)
	assert.InDelta(t, 0.3, def.CleanSheet.P(), 1e-12)
	require.NotNil(t, def.ActualPoints)
	assert.Equal(t, 7, *def.ActualPoints)

	wantTotal := 0.3*4 + 0.1*6 + 0.1*3 + 9*model.DEF.DCPoints()
	assert.InDelta(t, wantTotal, def.Points.Total, 1e-12)
	assert.InDelta(t, wantTotal/5, def.PointsPerCost, 1e-12)
	perCost, ok := def.ActualPointsPerCost()
	assert.True(t, ok)
	assert.InDelta(t, 7.0/5, perCost, 1e-12)

	mid, ok := got.Player(12)
	require.True(t, ok)
	assert.Nil(t, mid.ActualPoints, "no recorded points")
	_, ok = mid.ActualPointsPerCost()
	assert.False(t, ok)

	teams := got.Teams()
	require.Len(t, teams, 2)
	assert.Equal(t, 1, teams[0].Team.ID)
	assert.Equal(t, 2, teams[0].Fixtures)
	assert.InDelta(t, 0.3, teams[0].CleanSheet.P(), 1e-12)
}

func TestCombine_UnknownPlayer(t *testing.T) {
	gw := NewGameweekPrediction(1)
	gw.AddPlayer(playerPrediction(99, 100, nil, 0, 0, 0, 0))

	_, err := Combine(testDirectory(), []*GameweekPrediction{gw})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGameweekPredictions_Rank(t *testing.T) {
	gw := NewGameweekPrediction(1)
	gw.AddPlayer(playerPrediction(11, 100, model.IntPtr(2), 0.5, 0, 0, 0))    // 2.0 pts
	gw.AddPlayer(playerPrediction(12, 100, model.IntPtr(9), 0, 0.6, 0, 0))    // 3.0 pts
	gw.AddPlayer(playerPrediction(21, 100, model.IntPtr(5), 0, 0.25, 0.5, 0)) // 2.5 pts

	got, err := Combine(testDirectory(), []*GameweekPrediction{gw})
	require.NoError(t, err)

	ids := func(ps []PlayerTotal) []int {
		out := make([]int, len(ps))
		for i, p := range ps {
			out[i] = p.Player.ID
		}
		return out
	}

	assert.Equal(t, []int{12, 21, 11}, ids(got.Rank(ByPoints)))
	assert.Equal(t, []int{11, 21, 12}, ids(got.Rank(ByPointsPerCost)))
	assert.Equal(t, []int{11, 12, 21}, ids(got.Rank(ByCleanSheet)), "ties by ID")
	assert.Equal(t, []int{12, 21}, ids(got.Top(ByPoints, 2)))
	assert.Len(t, got.Top(ByPoints, 10), 3)
	assert.Empty(t, got.Top(ByPoints, -1))

	mids := got.ForType(model.MID)
	assert.Equal(t, []int{12}, ids(mids.Rank(ByXG)))
	assert.Len(t, got.Players(), 3, "view leaves the original intact")

	sum, err := SumActualPoints(got.Top(ByPoints, 2))
	require.NoError(t, err)
	assert.Equal(t, 14, sum)
}

func TestSumActualPoints_Unplayed(t *testing.T) {
	_, err := SumActualPoints([]PlayerTotal{{Player: model.Player{ID: 3}}})
	assert.ErrorIs(t, err, ErrNoActualPoints)
}

func TestRanking_Parse(t *testing.T) {
	for r := ByPoints; r <= ByDC; r++ {
		got, err := ParseRanking(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	got, err := ParseRanking(" XG ")
	require.NoError(t, err)
	assert.Equal(t, ByXG, got)

	_, err = ParseRanking("vibes")
	assert.Error(t, err)
	assert.Equal(t, "Ranking(9)", Ranking(9).String())
}
