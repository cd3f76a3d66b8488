// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the immutable FPL records held by the registry.
//
// Records are plain values. Relationships are expressed by IDs and resolved
// through registry indices, never through pointers or globals.
package model

import (
	"time"
)

// SeasonGameweeks is the number of gameweeks in a Premier League season.
const SeasonGameweeks = 38

// Side is the home or away side of a fixture.
type Side int

const (
	Home Side = iota
	Away
)

// Sides lists both sides in a fixed order.
var Sides = [2]Side{Home, Away}

// String returns "home" or "away".
func (s Side) String() string {
	if s == Home {
		return "home"
	}
	return "away"
}

// SideOf returns Home when wasHome is set, Away otherwise.
func SideOf(wasHome bool) Side {
	if wasHome {
		return Home
	}
	return Away
}

// Team is a Premier League club with its FPL strength ratings.
type Team struct {
	ID                  int    `json:"team_id"`
	Name                string `json:"name"`
	StrengthOverallHome int    `json:"strength_overall_home"`
	StrengthOverallAway int    `json:"strength_overall_away"`
	StrengthAttackHome  int    `json:"strength_attack_home"`
	StrengthAttackAway  int    `json:"strength_attack_away"`
	StrengthDefenceHome int    `json:"strength_defence_home"`
	StrengthDefenceAway int    `json:"strength_defence_away"`
}

// Gameweek is one round of the season.
type Gameweek struct {
	ID       int       `json:"gameweek"`
	Deadline time.Time `json:"deadline_time"`
	Finished bool      `json:"finished"`
}

// TeamFixture is one team's side of a fixture.
type TeamFixture struct {
	FixtureID  int  `json:"fixture_id"`
	TeamID     int  `json:"team_id"`
	Difficulty int  `json:"difficulty"`
	Score      *int `json:"score"`
}

// Fixture is a scheduled match between two teams.
type Fixture struct {
	ID       int         `json:"fixture_id"`
	Gameweek int         `json:"gameweek"`
	Finished bool        `json:"finished"`
	Home     TeamFixture `json:"home"`
	Away     TeamFixture `json:"away"`
}

// Side returns the team's side of the fixture and whether the team plays
// in it.
func (f Fixture) Side(teamID int) (Side, bool) {
	switch teamID {
	case f.Home.TeamID:
		return Home, true
	case f.Away.TeamID:
		return Away, true
	default:
		return 0, false
	}
}

// TeamFixture returns the given side of the fixture.
func (f Fixture) TeamFixture(side Side) TeamFixture {
	if side == Home {
		return f.Home
	}
	return f.Away
}

// Opponent returns the other side of the fixture.
func (f Fixture) Opponent(side Side) TeamFixture {
	if side == Home {
		return f.Away
	}
	return f.Home
}

// CleanSheet returns 1 when the given side conceded nothing in a played
// fixture, 0 otherwise.
func (f Fixture) CleanSheet(side Side) float64 {
	conceded := f.Opponent(side).Score
	if conceded != nil && *conceded == 0 {
		return 1
	}
	return 0
}

// Outcome is "home", "away" or "draw" for a finished fixture with both
// scores, "none" otherwise.
func (f Fixture) Outcome() string {
	if !f.Finished || f.Home.Score == nil || f.Away.Score == nil {
		return "none"
	}
	switch h, a := *f.Home.Score, *f.Away.Score; {
	case h > a:
		return "home"
	case h < a:
		return "away"
	default:
		return "draw"
	}
}

// Player is an FPL element.
type Player struct {
	ID         int        `json:"player_id"`
	WebName    string     `json:"web_name"`
	FirstName  string     `json:"first_name"`
	SecondName string     `json:"second_name"`
	Type       PlayerType `json:"player_type"`
	TeamID     int        `json:"team_id"`
	NowCost    float64    `json:"now_cost"`
	Status     string     `json:"status"`
}

// PlayerFixture is one player's record for one fixture. Future fixtures
// carry only the identifying fields; TotalPoints is nil until played.
type PlayerFixture struct {
	PlayerID              int     `json:"player_id"`
	FixtureID             int     `json:"fixture_id"`
	TeamID                int     `json:"team_id"`
	Gameweek              int     `json:"gameweek"`
	WasHome               bool    `json:"was_home"`
	TotalPoints           *int    `json:"total_points"`
	Minutes               int     `json:"minutes"`
	Goals                 int     `json:"goals_scored"`
	Assists               int     `json:"assists"`
	CleanSheets           int     `json:"clean_sheets"`
	DefensiveContribution int     `json:"defensive_contribution"`
	XG                    float64 `json:"expected_goals"`
	XA                    float64 `json:"expected_assists"`
	XGI                   float64 `json:"expected_goal_involvements"`
	XGC                   float64 `json:"expected_goals_conceded"`
	Value                 int     `json:"value"`
	Starts                int     `json:"starts"`
}

// Side returns the player's side of the fixture.
func (pf PlayerFixture) Side() Side {
	return SideOf(pf.WasHome)
}

// Played reports whether the record carries a result.
func (pf PlayerFixture) Played() bool {
	return pf.TotalPoints != nil
}

// PlayerFixtureKey identifies a player fixture.
type PlayerFixtureKey struct {
	FixtureID int
	PlayerID  int
}

// Key returns the unique key of the record.
func (pf PlayerFixture) Key() PlayerFixtureKey {
	return PlayerFixtureKey{FixtureID: pf.FixtureID, PlayerID: pf.PlayerID}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
