// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registrytest builds small deterministic seasons for tests.
package registrytest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianFPL/services/forecast/model"
	"github.com/AleutianAI/AleutianFPL/services/forecast/registry"
)

// Options controls the generated season.
type Options struct {
	// Teams is the number of teams. Must be even. Default 4.
	Teams int

	// Gameweeks is the number of scheduled gameweeks. Default 6.
	Gameweeks int

	// Played is the number of gameweeks with results. Default Gameweeks-2.
	Played int

	// DoubleGameweek adds a second fixture between teams 1 and 2 in that
	// gameweek. Zero disables it.
	DoubleGameweek int
}

// SeasonStart is the deadline of gameweek 1.
var SeasonStart = time.Date(2025, time.August, 15, 17, 30, 0, 0, time.UTC)

// positions of the four players generated per team.
var positions = []model.PlayerType{model.GKP, model.DEF, model.MID, model.FWD}

func (o Options) withDefaults() Options {
	if o.Teams == 0 {
		o.Teams = 4
	}
	if o.Gameweeks == 0 {
		o.Gameweeks = 6
	}
	if o.Played == 0 {
		o.Played = o.Gameweeks - 2
	}
	return o
}

// New builds and freezes a registry, failing the test on error.
func New(tb testing.TB, opts Options) *registry.Registry {
	tb.Helper()
	reg, err := Build(opts)
	require.NoError(tb, err)
	return reg
}

// Build builds and freezes a registry.
//
// Teams are numbered 1..Teams and play a round robin, swapping home and
// away on every second cycle. Each team has one player per position with
// ID team*10+k (k = 1..4 for GKP, DEF, MID, FWD).
func Build(opts Options) (*registry.Registry, error) {
	opts = opts.withDefaults()
	if opts.Teams < 2 || opts.Teams%2 != 0 {
		return nil, fmt.Errorf("registrytest: team count %d must be even", opts.Teams)
	}

	reg := registry.New()

	for id := 1; id <= opts.Teams; id++ {
		if err := reg.AddTeam(Team(id)); err != nil {
			return nil, err
		}
		for k, pt := range positions {
			if err := reg.AddPlayer(Player(id, k+1, pt)); err != nil {
				return nil, err
			}
		}
	}

	for gw := 1; gw <= opts.Gameweeks; gw++ {
		if err := reg.AddGameweek(model.Gameweek{
			ID:       gw,
			Deadline: SeasonStart.AddDate(0, 0, 7*(gw-1)),
			Finished: gw <= opts.Played,
		}); err != nil {
			return nil, err
		}

		pairs := roundPairs(opts.Teams, gw)
		if gw == opts.DoubleGameweek {
			pairs = append(pairs, [2]int{2, 1})
		}
		for m, pair := range pairs {
			f := Fixture(gw*100+m, gw, pair[0], pair[1], gw <= opts.Played)
			if err := reg.AddFixture(f); err != nil {
				return nil, err
			}
			for _, side := range model.Sides {
				if err := addPlayerFixtures(reg, f, side); err != nil {
					return nil, err
				}
			}
		}
	}

	reg.Freeze()
	return reg, nil
}

// Team returns the generated team with the given ID.
func Team(id int) model.Team {
	return model.Team{
		ID:                  id,
		Name:                fmt.Sprintf("Team %d", id),
		StrengthOverallHome: 1000 + 10*id,
		StrengthOverallAway: 1000 + 5*id,
		StrengthAttackHome:  1000 + 10*id,
		StrengthAttackAway:  1000 + 5*id,
		StrengthDefenceHome: 1000 + 10*id,
		StrengthDefenceAway: 1000 + 5*id,
	}
}

// Player returns the generated player of a team.
func Player(teamID, k int, pt model.PlayerType) model.Player {
	return model.Player{
		ID:         PlayerID(teamID, pt),
		WebName:    fmt.Sprintf("P%d", teamID*10+k),
		FirstName:  "Player",
		SecondName: fmt.Sprintf("%d", teamID*10+k),
		Type:       pt,
		TeamID:     teamID,
		NowCost:    4.0 + float64(k) + 0.5*float64(teamID%2),
		Status:     "a",
	}
}

// PlayerID returns the ID of a team's player at a position.
func PlayerID(teamID int, pt model.PlayerType) int {
	return teamID*10 + int(pt)
}

// Difficulty is the generated fixture difficulty of facing opponentID.
func Difficulty(opponentID int) int {
	return 1 + opponentID%5
}

// Fixture returns a generated fixture. Played fixtures get deterministic
// scores that produce some clean sheets.
func Fixture(id, gw, home, away int, played bool) model.Fixture {
	f := model.Fixture{
		ID:       id,
		Gameweek: gw,
		Finished: played,
		Home:     model.TeamFixture{FixtureID: id, TeamID: home, Difficulty: Difficulty(away)},
		Away:     model.TeamFixture{FixtureID: id, TeamID: away, Difficulty: Difficulty(home)},
	}
	if played {
		f.Home.Score = model.IntPtr((id + home) % 3)
		f.Away.Score = model.IntPtr((id + 2*away) % 2)
	}
	return f
}

func addPlayerFixtures(reg *registry.Registry, f model.Fixture, side model.Side) error {
	tf := f.TeamFixture(side)
	for _, pt := range positions {
		pf := model.PlayerFixture{
			PlayerID:  PlayerID(tf.TeamID, pt),
			FixtureID: f.ID,
			TeamID:    tf.TeamID,
			Gameweek:  f.Gameweek,
			WasHome:   side == model.Home,
		}
		if f.Finished {
			fillResult(&pf, f, side, pt)
		}
		if err := reg.AddPlayerFixture(pf); err != nil {
			return err
		}
	}
	return nil
}

func fillResult(pf *model.PlayerFixture, f model.Fixture, side model.Side, pt model.PlayerType) {
	strength := float64(pf.TeamID%3) * 0.1
	pf.Minutes = 90
	if pt == model.FWD {
		pf.Minutes = 60 + 10*(f.ID%3)
	}
	pf.Starts = 1
	switch pt {
	case model.DEF:
		pf.XG, pf.XA, pf.DefensiveContribution = 0.05+strength/2, 0.05, 8+f.ID%4
	case model.MID:
		pf.XG, pf.XA, pf.DefensiveContribution = 0.2+strength, 0.3, 6+f.ID%3
	case model.FWD:
		pf.XG, pf.XA, pf.DefensiveContribution = 0.4+strength, 0.1, 2
	default:
		pf.DefensiveContribution = 1
	}
	pf.XGI = pf.XG + pf.XA

	scored := *f.TeamFixture(side).Score
	if pt == model.FWD && scored > 0 {
		pf.Goals = 1
	}
	if pt == model.MID && scored > 1 {
		pf.Goals = 1
	}
	if pt == model.MID && scored > 0 {
		pf.Assists = 1
	}
	cs := f.CleanSheet(side)
	pf.CleanSheets = int(cs)

	points := 2 +
		pf.Goals*int(pt.GoalPoints()) +
		pf.Assists*int(pt.AssistPoints()) +
		int(cs*pt.CleanSheetPoints())
	pf.TotalPoints = model.IntPtr(points)
	pf.Value = 40 + 10*int(pt)
}

// roundPairs returns the (home, away) pairs of one gameweek using the
// circle method.
func roundPairs(teams, gw int) [][2]int {
	rounds := teams - 1
	round := (gw - 1) % rounds
	flip := ((gw-1)/rounds)%2 == 1

	// Team 1 is fixed; the others rotate.
	ring := make([]int, 0, teams-1)
	for i := 0; i < teams-1; i++ {
		ring = append(ring, 2+(i+round)%(teams-1))
	}
	order := append([]int{1}, ring...)

	pairs := make([][2]int, 0, teams/2)
	for i := 0; i < teams/2; i++ {
		home, away := order[i], order[teams-1-i]
		if (round+i)%2 == 1 {
			home, away = away, home
		}
		if flip {
			home, away = away, home
		}
		pairs = append(pairs, [2]int{home, away})
	}
	return pairs
}
