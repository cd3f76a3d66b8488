// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixture_Sides(t *testing.T) {
	f := Fixture{
		ID:       10,
		Gameweek: 3,
		Finished: true,
		Home:     TeamFixture{FixtureID: 10, TeamID: 1, Difficulty: 2, Score: IntPtr(2)},
		Away:     TeamFixture{FixtureID: 10, TeamID: 2, Difficulty: 4, Score: IntPtr(0)},
	}

	side, ok := f.Side(1)
	require.True(t, ok)
	assert.Equal(t, Home, side)

	side, ok = f.Side(2)
	require.True(t, ok)
	assert.Equal(t, Away, side)

	_, ok = f.Side(3)
	assert.False(t, ok)

	assert.Equal(t, 2, f.TeamFixture(Home).Difficulty)
	assert.Equal(t, 1, f.Opponent(Away).TeamID)
	assert.Equal(t, 1.0, f.CleanSheet(Home))
	assert.Equal(t, 0.0, f.CleanSheet(Away))
	assert.Equal(t, "home", f.Outcome())
}

func TestFixture_Outcome(t *testing.T) {
	tests := []struct {
		name     string
		finished bool
		home     *int
		away     *int
		want     string
	}{
		{"not finished", false, IntPtr(1), IntPtr(0), "none"},
		{"missing score", true, nil, IntPtr(0), "none"},
		{"home win", true, IntPtr(3), IntPtr(1), "home"},
		{"away win", true, IntPtr(0), IntPtr(1), "away"},
		{"draw", true, IntPtr(2), IntPtr(2), "draw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Fixture{
				Finished: tt.finished,
				Home:     TeamFixture{Score: tt.home},
				Away:     TeamFixture{Score: tt.away},
			}
			assert.Equal(t, tt.want, f.Outcome())
		})
	}
}

func TestFixture_UnplayedIsNoCleanSheet(t *testing.T) {
	f := Fixture{Home: TeamFixture{TeamID: 1}, Away: TeamFixture{TeamID: 2}}
	assert.Zero(t, f.CleanSheet(Home))
	assert.Zero(t, f.CleanSheet(Away))
}

func TestPlayerType_Points(t *testing.T) {
	tests := []struct {
		pt                       PlayerType
		cleanSheet, goal, assist float64
		dc                       float64
	}{
		{GKP, 4, 6, 3, 0},
		{DEF, 4, 6, 3, .1 / 10},
		{MID, 1, 5, 3, .1 / 12},
		{FWD, 0, 4, 3, .1 / 12},
	}
	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			assert.Equal(t, tt.cleanSheet, tt.pt.CleanSheetPoints())
			assert.Equal(t, tt.goal, tt.pt.GoalPoints())
			assert.Equal(t, tt.assist, tt.pt.AssistPoints())
			assert.InDelta(t, tt.dc, tt.pt.DCPoints(), 1e-12)
		})
	}
}

func TestParsePlayerType(t *testing.T) {
	pt, err := ParsePlayerType(" mid ")
	require.NoError(t, err)
	assert.Equal(t, MID, pt)

	_, err = ParsePlayerType("striker")
	assert.Error(t, err)

	assert.False(t, PlayerType(9).Valid())
	assert.Equal(t, "PlayerType(9)", PlayerType(9).String())
}

func TestPlayerType_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Player{ID: 1, Type: DEF})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"player_type":"DEF"`)
}

func TestPlayerType_UnmarshalJSON(t *testing.T) {
	var p Player
	require.NoError(t, json.Unmarshal([]byte(`{"player_type":"mid"}`), &p))
	assert.Equal(t, MID, p.Type)

	var pt PlayerType
	require.NoError(t, json.Unmarshal([]byte(`4`), &pt))
	assert.Equal(t, FWD, pt)

	assert.Error(t, json.Unmarshal([]byte(`"COACH"`), &pt))
	assert.Error(t, json.Unmarshal([]byte(`9`), &pt))
	assert.Error(t, json.Unmarshal([]byte(`true`), &pt))
}
